package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"key2pay-backend/internal/domain"
	"key2pay-backend/internal/gateway"
	"key2pay-backend/internal/logging"
)

const (
	refundEndpoint   = "/transaction/refund"
	resultNotSuccess = "Not Successful"
)

// Processor sends one authenticated request to the Key2Pay API.
type Processor interface {
	Send(ctx context.Context, s gateway.Settings, endpoint string, payload map[string]any) (*gateway.Reply, error)
}

type PaymentService struct {
	Repo          OrderRepo
	Gateways      GatewayDirectory
	Processor     Processor
	PublicBaseURL string
	ShopName      string
	Log           *zap.Logger
	Now           func() time.Time
}

type InitiateRequest struct {
	OrderID    string
	GatewayID  string
	CustomerIP string
	Fields     map[string]string
}

type InitiateResult struct {
	Redirect string
	Order    *domain.Order
}

// Initiate opens a processor payment session for a pending order and returns
// where the buyer should be sent.
func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	inst, ok := s.Gateways.Get(req.GatewayID)
	if !ok {
		return nil, ErrNotFound("gateway")
	}
	o, err := s.order(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !inst.Available(o.Currency) {
		return nil, ErrBadRequest(inst.Method.Title + " is not available for this order")
	}
	if o.Status != domain.OrderPending && o.Status != domain.OrderFailed {
		return nil, ErrConflict("order is " + string(o.Status))
	}
	if o.MetaValue(domain.MetaToken) != "" {
		return nil, ErrConflict("payment already initiated")
	}

	trackID := gateway.TrackID(o.OrderID, s.now())
	returnURL := s.ReturnURL(o.OrderID)
	payload, err := inst.Method.BuildInitiationPayload(o, gateway.Checkout{
		TrackID:     trackID,
		CustomerIP:  req.CustomerIP,
		ReturnURL:   returnURL,
		FailureURL:  s.url("/checkout/order-pay/" + o.OrderID + "?k2p-status=failed"),
		ServerURL:   s.url("/wc-api/" + inst.ID),
		ProductDesc: fmt.Sprintf("Order %s from %s", o.OrderID, s.ShopName),
		Fields:      req.Fields,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidCheckout) {
			return nil, ErrBadRequest(err.Error())
		}
		return nil, err
	}

	log := s.logger().With(zap.String("gateway", inst.ID), zap.String("order_id", o.OrderID))
	reply, err := s.Processor.Send(ctx, inst.Settings, inst.Method.Endpoint, payload)
	if err != nil {
		log.Error("payment initiation request failed", zap.Error(err))
		return nil, fmt.Errorf("initiate payment for order %s: %w", o.OrderID, err)
	}
	if !reply.Valid() || reply.RedirectURL == "" || strings.TrimSpace(reply.Result) == resultNotSuccess {
		code := Normalize(domain.Structured(reply.Raw))
		log.Info("payment initiation rejected", zap.String("code", code), zap.String("error", reply.ErrorMessage()))
		return nil, &ErrPaymentRejected{Code: code, Message: FriendlyMessage(code)}
	}
	if inst.Method.SessionReply && (reply.TransactionID == "" || reply.Token == "") {
		log.Info("payment initiation reply missing transaction id or token")
		return nil, &ErrPaymentRejected{Message: FriendlyMessage("")}
	}

	meta := map[string]string{domain.MetaTrackID: trackID}
	if reply.TrackID != "" {
		meta[domain.MetaTrackID] = reply.TrackID
	}
	if reply.TransactionID != "" {
		meta[domain.MetaTransactionID] = reply.TransactionID
	}
	if reply.Token != "" {
		meta[domain.MetaToken] = reply.Token
	}
	updated, err := s.Repo.BeginPayment(ctx, o.OrderID, inst.ID, meta,
		fmt.Sprintf("Awaiting %s payment confirmation.", inst.Method.Title))
	if err != nil {
		return nil, fmt.Errorf("record payment session for order %s: %w", o.OrderID, err)
	}

	redirect := reply.RedirectURL
	if inst.Settings.TestMode() {
		log.Info("test merchant, redirecting to return page")
		redirect = returnURL
	}
	return &InitiateResult{Redirect: redirect, Order: updated}, nil
}

type RefundRequest struct {
	OrderID string
	// Amount defaults to the order total when zero.
	Amount decimal.Decimal
	Reason string
}

type RefundResult struct {
	Success bool
	Message string
	Order   *domain.Order
}

// Refund asks the processor to refund a paid order. A processor refusal is
// reported in the result, not as an error; either way a note is recorded.
func (s *PaymentService) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	o, err := s.order(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	txn := o.MetaValue(domain.MetaTransactionID)
	if txn == "" {
		txn = o.TransactionID
	}
	if txn == "" {
		return nil, ErrBadRequest("order has no processor transaction id")
	}
	inst, ok := s.Gateways.Get(o.PaymentMethod)
	if !ok {
		return nil, ErrBadRequest("order was not paid through a configured gateway")
	}
	amount := req.Amount
	if amount.IsZero() {
		amount = o.Total
	}
	if amount.IsNegative() || amount.GreaterThan(o.Total) {
		return nil, ErrBadRequest("refund amount must be between 0 and the order total")
	}

	payload := map[string]any{
		"transactionid":     txn,
		"tranid":            txn,
		"trackid":           o.MetaValue(domain.MetaTrackID),
		"bill_amount":       json.Number(amount.String()),
		"bill_currencycode": o.Currency,
		"reason":            req.Reason,
	}
	log := s.logger().With(zap.String("gateway", inst.ID), zap.String("order_id", o.OrderID))
	reply, err := s.Processor.Send(ctx, inst.Settings, refundEndpoint, payload)
	if err != nil {
		log.Error("refund request failed", zap.Error(err))
		return nil, fmt.Errorf("refund order %s: %w", o.OrderID, err)
	}

	if refunded(reply) {
		note := fmt.Sprintf("Key2Pay Refund successful. Amount: %s %s. Reason: %s. Transaction ID: %s",
			amount.StringFixed(2), o.Currency, req.Reason, txn)
		var updated *domain.Order
		if amount.Equal(o.Total) {
			updated, err = withCurrent(ctx, s.Repo, o, func(cur *domain.Order) (*domain.Order, error) {
				return s.Repo.UpdateStatus(ctx, cur.OrderID, cur.Status, domain.OrderRefunded, note)
			})
		} else {
			updated, err = s.Repo.AddNote(ctx, o.OrderID, note)
		}
		if err != nil {
			return nil, fmt.Errorf("record refund for order %s: %w", o.OrderID, err)
		}
		log.Info("refund succeeded", zap.String("amount", amount.String()))
		return &RefundResult{Success: true, Message: "Refund successful.", Order: updated}, nil
	}

	msg := reply.ErrorMessage()
	if msg == "" {
		msg = "An unknown error occurred during Key2Pay refund."
	}
	note := fmt.Sprintf("Key2Pay Refund failed. Amount: %s %s. Reason: %s. Error: %s",
		amount.StringFixed(2), o.Currency, req.Reason, msg)
	updated, err := s.Repo.AddNote(ctx, o.OrderID, note)
	if err != nil {
		return nil, fmt.Errorf("record refund failure for order %s: %w", o.OrderID, err)
	}
	log.Warn("refund refused by processor", zap.String("error", msg))
	return &RefundResult{Message: msg, Order: updated}, nil
}

func refunded(r *gateway.Reply) bool {
	if !r.Valid() {
		return false
	}
	return r.Result == "CAPTURED" || r.Result == "Success" || Normalize(domain.Scalar(r.ResponseCode)) == CodeApproved
}

// ReturnURL is the order-received page the processor sends the buyer back to.
func (s *PaymentService) ReturnURL(orderID string) string {
	return s.url("/checkout/order-received/" + orderID)
}

func (s *PaymentService) url(path string) string {
	return strings.TrimRight(s.PublicBaseURL, "/") + path
}

func (s *PaymentService) order(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.Repo.Get(ctx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, ErrNotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (s *PaymentService) logger() *zap.Logger {
	return logging.OrNop(s.Log)
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
