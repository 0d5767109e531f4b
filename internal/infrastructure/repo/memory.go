package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"key2pay-backend/internal/domain"
)

// MemoryOrderRepo keeps orders in process memory. Each mutation runs under the
// write lock, so every order changes atomically.
type MemoryOrderRepo struct {
	mu  sync.RWMutex
	m   map[string]*domain.Order
	now func() time.Time
}

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{m: make(map[string]*domain.Order), now: func() time.Time { return time.Now().UTC() }}
}

func (r *MemoryOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[o.OrderID]; ok {
		return domain.ErrOrderExists
	}
	r.m[o.OrderID] = o.Clone()
	return nil
}

func (r *MemoryOrderRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.m[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// List returns orders newest first.
func (r *MemoryOrderRepo) List(_ context.Context, page, pageSize int) ([]domain.Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]domain.Order, 0, len(r.m))
	for _, o := range r.m {
		all = append(all, *o.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].OrderID > all[j].OrderID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryOrderRepo) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus, note string) (*domain.Order, error) {
	return r.mutate(id, note, func(o *domain.Order) error {
		if err := expectStatus(o, from); err != nil {
			return err
		}
		o.Status = to
		return nil
	})
}

func (r *MemoryOrderRepo) PaymentComplete(_ context.Context, id string, from domain.OrderStatus, transactionID, note string) (*domain.Order, error) {
	return r.mutate(id, note, func(o *domain.Order) error {
		if err := expectStatus(o, from); err != nil {
			return err
		}
		completePayment(o, transactionID)
		return nil
	})
}

func (r *MemoryOrderRepo) AddNote(_ context.Context, id, note string) (*domain.Order, error) {
	return r.mutate(id, note, func(*domain.Order) error { return nil })
}

func (r *MemoryOrderRepo) BeginPayment(_ context.Context, id, paymentMethod string, meta map[string]string, note string) (*domain.Order, error) {
	return r.mutate(id, note, func(o *domain.Order) error {
		beginPayment(o, paymentMethod, meta)
		return nil
	})
}

// mutate applies fn under the write lock. fn must return before changing o
// when it fails.
func (r *MemoryOrderRepo) mutate(id, note string, fn func(o *domain.Order) error) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	now := r.now()
	if err := fn(o); err != nil {
		return nil, err
	}
	if note != "" {
		o.Notes = append(o.Notes, domain.Note{ID: uuid.NewString(), Content: note, CreatedAt: now})
	}
	o.UpdatedAt = now
	return o.Clone(), nil
}
