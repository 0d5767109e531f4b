package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderOnHold     OrderStatus = "on-hold"
	OrderFailed     OrderStatus = "failed"
	OrderRefunded   OrderStatus = "refunded"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the statuses the order store knows.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderOnHold, OrderFailed, OrderRefunded, OrderCancelled:
		return true
	}
	return false
}

// Paid reports whether the order has already been confirmed as paid.
func (s OrderStatus) Paid() bool {
	return s == OrderProcessing || s == OrderCompleted
}

// Closed statuses are never moved by payment notifications.
func (s OrderStatus) Closed() bool {
	return s == OrderRefunded || s == OrderCancelled
}

// Reserved metadata keys. Written once at payment initiation, read during reconciliation.
const (
	MetaTransactionID = "transaction_id"
	MetaTrackID       = "track_id"
	MetaToken         = "token"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order already exists")
	ErrOrderChanged  = errors.New("order status changed")
)

type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Order struct {
	OrderID        string            `json:"orderId"`
	Status         OrderStatus       `json:"status"`
	Total          decimal.Decimal   `json:"total"`
	Currency       string            `json:"currency"`
	PaymentMethod  string            `json:"paymentMethod,omitempty"`
	TransactionID  string            `json:"transactionId,omitempty"`
	BillingEmail   string            `json:"billingEmail,omitempty"`
	BillingPhone   string            `json:"billingPhone,omitempty"`
	BillingCountry string            `json:"billingCountry,omitempty"`
	BillingCity    string            `json:"billingCity,omitempty"`
	BillingState   string            `json:"billingState,omitempty"`
	BillingAddress string            `json:"billingAddress,omitempty"`
	BillingZip     string            `json:"billingZip,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
	Notes          []Note            `json:"notes,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func (o *Order) MetaValue(key string) string {
	if o.Meta == nil {
		return ""
	}
	return o.Meta[key]
}

// RecentNotes returns up to n notes, newest first.
func (o *Order) RecentNotes(n int) []Note {
	out := make([]Note, 0, n)
	for i := len(o.Notes) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, o.Notes[i])
	}
	return out
}

// Clone returns a deep copy so callers cannot alias store state.
func (o *Order) Clone() *Order {
	cp := *o
	if o.Meta != nil {
		cp.Meta = make(map[string]string, len(o.Meta))
		for k, v := range o.Meta {
			cp.Meta[k] = v
		}
	}
	if o.Notes != nil {
		cp.Notes = append([]Note(nil), o.Notes...)
	}
	return &cp
}
