package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"key2pay-backend/internal/domain"
)

// OrderRepo is the order store. Every mutating call must apply its status,
// metadata and note change to a single order atomically; reconciliation relies
// on that and takes no locks of its own.
type OrderRepo interface {
	OrderReader
	Create(ctx context.Context, o *domain.Order) error
	List(ctx context.Context, page, pageSize int) ([]domain.Order, int, error)
	// UpdateStatus moves the order from one status to another and appends note.
	// It fails with domain.ErrOrderChanged, writing nothing, when the order is
	// no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, note string) (*domain.Order, error)
	// PaymentComplete marks the order completed, records transactionID unless one
	// is already recorded, and appends note. Repeating it is harmless. Like
	// UpdateStatus it only writes while the order is still in from.
	PaymentComplete(ctx context.Context, id string, from domain.OrderStatus, transactionID, note string) (*domain.Order, error)
	AddNote(ctx context.Context, id, note string) (*domain.Order, error)
	// BeginPayment sets the order pending with paymentMethod, stores meta keys
	// that are not yet set and appends note.
	BeginPayment(ctx context.Context, id, paymentMethod string, meta map[string]string, note string) (*domain.Order, error)
}

type OrderService struct {
	Repo OrderRepo
}

func (s *OrderService) Create(ctx context.Context, req *domain.Order) (string, error) {
	if req.OrderID == "" {
		req.OrderID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if strings.Contains(req.OrderID, "_") {
		return "", ErrBadRequest("order id must not contain '_'")
	}
	if !req.Total.IsPositive() {
		return "", ErrBadRequest("total must be positive")
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(req.Currency) != 3 {
		return "", ErrBadRequest("currency must be a 3-letter code")
	}
	now := time.Now().UTC()
	req.Status = domain.OrderPending
	req.TransactionID = ""
	req.Meta = nil
	req.Notes = nil
	req.CreatedAt = now
	req.UpdatedAt = now
	if err := s.Repo.Create(ctx, req); err != nil {
		if errors.Is(err, domain.ErrOrderExists) {
			return "", ErrConflict("order already exists")
		}
		return "", fmt.Errorf("create order: %w", err)
	}
	return req.OrderID, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.Repo.Get(ctx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, ErrNotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (s *OrderService) List(ctx context.Context, page, pageSize int) ([]domain.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.Repo.List(ctx, page, pageSize)
}
