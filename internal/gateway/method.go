// Package gateway describes the Key2Pay payment method variants as data records.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"key2pay-backend/internal/domain"
)

const (
	CreditID    = "key2pay_credit"
	ThaiDebitID = "key2pay_thai_debit"
	InstaPayID  = "key2pay_instapay"

	DefaultLanguage = "en"
)

var ErrInvalidCheckout = errors.New("invalid checkout")

// PaymentMethod is the capability every variant offers the shared payment core.
type PaymentMethod interface {
	PaymentMethodType() string
	BuildInitiationPayload(o *domain.Order, c Checkout) (map[string]any, error)
	ExtraCheckoutFields() []CheckoutField
}

type CheckoutField struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required"`
}

// Checkout carries the request-scoped values the payload needs besides the order.
type Checkout struct {
	TrackID     string
	CustomerIP  string
	ReturnURL   string
	FailureURL  string
	ServerURL   string
	ProductDesc string
	Fields      map[string]string
}

// Method is a data-only variant record.
type Method struct {
	ID          string
	Title       string
	PaymentType string
	Endpoint    string
	Fields      []CheckoutField
	// Currencies limits availability; empty means any currency.
	Currencies []string
	// SessionReply means a successful initiation must return transactionid and token.
	SessionReply bool
}

func (m Method) PaymentMethodType() string { return m.PaymentType }

func (m Method) ExtraCheckoutFields() []CheckoutField {
	return append([]CheckoutField(nil), m.Fields...)
}

// SupportsCurrency reports whether the variant accepts orders in currency.
func (m Method) SupportsCurrency(currency string) bool {
	if len(m.Currencies) == 0 {
		return true
	}
	for _, c := range m.Currencies {
		if strings.EqualFold(c, currency) {
			return true
		}
	}
	return false
}

// ValidateCheckout checks that every required extra field was posted.
func (m Method) ValidateCheckout(fields map[string]string) error {
	for _, f := range m.Fields {
		if f.Required && strings.TrimSpace(fields[f.Name]) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidCheckout, f.Label)
		}
	}
	return nil
}

func (m Method) BuildInitiationPayload(o *domain.Order, c Checkout) (map[string]any, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: order required", ErrInvalidCheckout)
	}
	if c.TrackID == "" {
		return nil, fmt.Errorf("%w: track id required", ErrInvalidCheckout)
	}
	if !m.SupportsCurrency(o.Currency) {
		return nil, fmt.Errorf("%w: currency %s not supported by %s", ErrInvalidCheckout, o.Currency, m.Title)
	}
	if err := m.ValidateCheckout(c.Fields); err != nil {
		return nil, err
	}
	p := map[string]any{
		"payment_method":       map[string]any{"type": m.PaymentType},
		"trackid":              c.TrackID,
		"bill_currencycode":    o.Currency,
		"bill_amount":          json.Number(o.Total.String()),
		"bill_country":         o.BillingCountry,
		"bill_customerip":      c.CustomerIP,
		"bill_email":           o.BillingEmail,
		"bill_phone":           o.BillingPhone,
		"bill_city":            o.BillingCity,
		"bill_state":           o.BillingState,
		"bill_address":         o.BillingAddress,
		"bill_zip":             o.BillingZip,
		"returnUrl":            c.ReturnURL,
		"returnUrl_on_failure": c.FailureURL,
		"serverUrl":            c.ServerURL,
		"productdesc":          c.ProductDesc,
		"lang":                 DefaultLanguage,
	}
	for _, f := range m.Fields {
		p[f.Name] = strings.TrimSpace(c.Fields[f.Name])
	}
	return p, nil
}

// TrackID builds the "{order_id}_{unix_timestamp}" reference sent to the processor.
func TrackID(orderID string, at time.Time) string {
	return orderID + "_" + strconv.FormatInt(at.Unix(), 10)
}
