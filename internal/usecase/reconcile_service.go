package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"key2pay-backend/internal/domain"
	"key2pay-backend/internal/gateway"
	"key2pay-backend/internal/logging"
	"key2pay-backend/internal/redact"
)

const (
	ackProcessed     = "Webhook processed successfully."
	ackInvalid       = "Invalid webhook data received."
	ackForbidden     = "Webhook authentication failed."
	ackStoreFailure  = "Webhook could not be processed."
	fallbackNoteHead = "Payment status processed via URL parameter fallback. "
)

// fallbackParams are the return-page query parameters that trigger fallback processing.
var fallbackParams = []string{"result", "responsecode", "trackid"}

type GatewayDirectory interface {
	Get(id string) (gateway.Instance, bool)
}

// Ack is the reply sent back to the processor for a webhook.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ReturnPage is what the order-received page needs after fallback handling.
type ReturnPage struct {
	Order *domain.Order
	// Redirect asks the caller to reload the page without the processor parameters.
	Redirect bool
	Message  string
}

type ReconcileService struct {
	Repo       OrderRepo
	Gateways   GatewayDirectory
	Classifier Classifier
	Log        *zap.Logger
	Now        func() time.Time
}

// ParseWebhook decodes a webhook body into a notification. Anything but a
// non-empty JSON object is rejected with ErrMalformedPayload.
func (s *ReconcileService) ParseWebhook(gatewayID string, body []byte) (*domain.Notification, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty object", ErrMalformedPayload)
	}
	n := &domain.Notification{
		Source:     domain.SourceWebhook,
		Gateway:    gatewayID,
		Fields:     fields,
		ReceivedAt: s.now(),
	}
	fill(n)
	return n, nil
}

// FallbackNotification builds a notification from return-page query parameters.
func (s *ReconcileService) FallbackNotification(orderID string, params url.Values) *domain.Notification {
	fields := make(map[string]any, len(params))
	for k, v := range params {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	n := &domain.Notification{
		Source:     domain.SourceURLFallback,
		OrderID:    orderID,
		Fields:     fields,
		ReceivedAt: s.now(),
	}
	fill(n)
	return n
}

func fill(n *domain.Notification) {
	n.Type = n.Text("type")
	n.Result = n.Text("result")
	n.TrackID = n.Text("trackid")
	n.TransactionID = n.Text("transactionid")
	n.Token = n.Text("token")
	if n.Token == "" {
		n.Token = n.Text("udf4")
	}
	n.ErrorText = n.Text("error_text")
	n.Description = n.Text("responsedescription")
	if v := n.Text("bill_amount"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			n.Amount = &d
		}
	}
	switch n.Source {
	case domain.SourceWebhook:
		n.StatusCode = Normalize(domain.Structured(n.Fields))
	default:
		n.StatusCode = Normalize(n.Field("responsecode"))
	}
}

// HandleWebhook parses and reconciles one webhook delivery.
func (s *ReconcileService) HandleWebhook(ctx context.Context, gatewayID string, body []byte) (Ack, error) {
	log := s.logger().With(zap.String("gateway", gatewayID))
	if _, ok := s.Gateways.Get(gatewayID); !ok {
		log.Info("webhook for unknown gateway", zap.String("event", "webhook.unknown_gateway"))
		return Ack{Message: "Unknown gateway: " + gatewayID}, ErrNotFound("gateway")
	}
	n, err := s.ParseWebhook(gatewayID, body)
	if err != nil {
		log.Info("webhook rejected", zap.String("event", "webhook.malformed"), zap.Int("bytes", len(body)), zap.Error(err))
		return Ack{Message: ackInvalid}, err
	}
	return s.Reconcile(ctx, n)
}

// Reconcile applies one notification. Webhook failures are returned to the caller;
// fallback failures are logged and swallowed.
func (s *ReconcileService) Reconcile(ctx context.Context, n *domain.Notification) (Ack, error) {
	if n.Source == domain.SourceURLFallback {
		s.reconcileFallback(ctx, n)
		return Ack{Success: true, Message: "Fallback processed."}, nil
	}
	return s.reconcileWebhook(ctx, n)
}

func (s *ReconcileService) reconcileWebhook(ctx context.Context, n *domain.Notification) (Ack, error) {
	log := s.logger().With(zap.String("gateway", n.Gateway), zap.String("source", string(n.Source)))
	log.Debug("webhook payload", zap.Any("payload", redact.Map(n.Fields)))

	loc := Locator{Orders: s.Repo}
	o, err := loc.Locate(ctx, n.TrackID)
	if err != nil {
		if errors.Is(err, ErrMalformedTrackID) || errors.Is(err, domain.ErrOrderNotFound) {
			log.Info("order not found", zap.String("event", "webhook.order_not_found"), zap.Error(err))
			return Ack{Message: "Order not found for track_id: " + n.TrackID}, err
		}
		log.Error("order lookup failed", zap.Error(err))
		return Ack{Message: ackStoreFailure}, err
	}
	log = log.With(zap.String("order_id", o.OrderID))

	if err := VerifyToken(o, n.Token); err != nil {
		log.Warn("webhook token mismatch", zap.String("event", "security.token_mismatch"))
		return Ack{Message: ackForbidden}, err
	}

	var t Transition
	out := Outcome{
		Code:          n.StatusCode,
		TransactionID: n.TransactionID,
		ErrorText:     n.ErrorText,
		Amount:        n.Amount,
	}
	updated, err := withCurrent(ctx, s.Repo, o, func(cur *domain.Order) (*domain.Order, error) {
		if cur.Status != o.Status {
			log.Info("order changed while reconciling, classifying again",
				zap.String("from", string(o.Status)), zap.String("now", string(cur.Status)))
		}
		t = s.Classifier.Classify(cur, out)
		return s.apply(ctx, cur, t)
	})
	if err != nil {
		log.Error("apply transition failed", zap.String("transition", t.Kind.String()), zap.Error(err))
		return Ack{Message: ackStoreFailure}, err
	}
	log.Info("webhook reconciled",
		zap.String("code", n.StatusCode),
		zap.String("transition", t.Kind.String()),
		zap.String("from", string(o.Status)),
		zap.String("to", string(updated.Status)))
	return Ack{Success: true, Message: ackProcessed}, nil
}

func (s *ReconcileService) reconcileFallback(ctx context.Context, n *domain.Notification) {
	log := s.logger().With(zap.String("order_id", n.OrderID), zap.String("source", string(n.Source)))
	log.Debug("fallback parameters", zap.Any("payload", redact.Map(n.Fields)))

	o, err := s.Repo.Get(ctx, n.OrderID)
	if err != nil {
		log.Warn("fallback order lookup failed", zap.Error(err))
		return
	}
	if o.Status != domain.OrderPending {
		log.Info("fallback skipped, order already processed", zap.String("status", string(o.Status)))
		return
	}
	if n.TrackID != "" {
		id, err := ParseTrackID(n.TrackID)
		if err != nil || id != o.OrderID {
			log.Warn("fallback skipped, track id does not belong to order", zap.String("event", "fallback.track_mismatch"))
			return
		}
	}

	var t Transition
	updated, err := withCurrent(ctx, s.Repo, o, func(cur *domain.Order) (*domain.Order, error) {
		if cur.Status != domain.OrderPending {
			return nil, nil
		}
		t = s.Classifier.Classify(cur, Outcome{Code: n.StatusCode, ErrorText: n.Description})
		t.Note = fallbackNoteHead + t.Note
		return s.apply(ctx, cur, t)
	})
	if err != nil {
		log.Error("fallback transition failed", zap.String("transition", t.Kind.String()), zap.Error(err))
		return
	}
	if updated == nil {
		log.Info("fallback skipped, order processed meanwhile")
		return
	}
	log.Info("fallback reconciled",
		zap.String("code", n.StatusCode),
		zap.String("transition", t.Kind.String()),
		zap.String("to", string(updated.Status)))
}

// HandleReturn serves the order-received page. When the processor appended its
// result parameters and fallback is enabled for the order's gateway, they are
// reconciled once and the caller is told to redirect to the clean page.
func (s *ReconcileService) HandleReturn(ctx context.Context, orderID string, params url.Values) (*ReturnPage, error) {
	o, err := s.Repo.Get(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, ErrNotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	page := &ReturnPage{Order: o}
	inst, ok := s.Gateways.Get(o.PaymentMethod)
	if ok && !inst.Settings.DisableURLFallback && hasFallbackParams(params) {
		_, _ = s.Reconcile(ctx, s.FallbackNotification(orderID, params))
		page.Redirect = true
		if fresh, err := s.Repo.Get(ctx, orderID); err == nil {
			page.Order = fresh
		}
	}
	page.Message = ReturnPageMessage(page.Order)
	return page, nil
}

func hasFallbackParams(params url.Values) bool {
	for _, k := range fallbackParams {
		if params.Has(k) {
			return true
		}
	}
	return false
}

// apply writes t, conditional on o still having the status it was classified from.
func (s *ReconcileService) apply(ctx context.Context, o *domain.Order, t Transition) (*domain.Order, error) {
	switch t.Kind {
	case Complete:
		return s.Repo.PaymentComplete(ctx, o.OrderID, o.Status, t.TransactionID, t.Note)
	case SetStatus:
		return s.Repo.UpdateStatus(ctx, o.OrderID, o.Status, t.Target, t.Note)
	}
	return s.Repo.AddNote(ctx, o.OrderID, t.Note)
}

const maxWriteAttempts = 3

// withCurrent runs write against o and, when another writer changed the order
// first, against a fresh copy. It gives up after maxWriteAttempts.
func withCurrent(ctx context.Context, repo OrderReader, o *domain.Order, write func(cur *domain.Order) (*domain.Order, error)) (*domain.Order, error) {
	for attempt := 1; ; attempt++ {
		updated, err := write(o)
		if !errors.Is(err, domain.ErrOrderChanged) || attempt == maxWriteAttempts {
			return updated, err
		}
		if o, err = repo.Get(ctx, o.OrderID); err != nil {
			return nil, err
		}
	}
}

func (s *ReconcileService) logger() *zap.Logger {
	return logging.OrNop(s.Log)
}

func (s *ReconcileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
