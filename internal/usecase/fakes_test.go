package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"key2pay-backend/internal/domain"
	"key2pay-backend/internal/gateway"
)

type completion struct {
	OrderID       string
	TransactionID string
}

type fakeRepo struct {
	m           map[string]*domain.Order
	completions []completion
	err         error
	seq         int

	// afterGet runs once, after the next Get has taken its copy.
	afterGet func()
}

func newFakeRepo(orders ...*domain.Order) *fakeRepo {
	r := &fakeRepo{m: map[string]*domain.Order{}}
	for _, o := range orders {
		r.m[o.OrderID] = o.Clone()
	}
	return r
}

func (r *fakeRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	o, ok := r.m[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := o.Clone()
	if hook := r.afterGet; hook != nil {
		r.afterGet = nil
		hook()
	}
	return cp, nil
}

func (r *fakeRepo) Create(_ context.Context, o *domain.Order) error {
	if _, ok := r.m[o.OrderID]; ok {
		return domain.ErrOrderExists
	}
	r.m[o.OrderID] = o.Clone()
	return nil
}

func (r *fakeRepo) List(_ context.Context, page, pageSize int) ([]domain.Order, int, error) {
	ids := make([]string, 0, len(r.m))
	for id := range r.m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	start := (page - 1) * pageSize
	if start > len(ids) {
		start = len(ids)
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]domain.Order, 0, end-start)
	for _, id := range ids[start:end] {
		out = append(out, *r.m[id].Clone())
	}
	return out, len(ids), nil
}

func (r *fakeRepo) mutate(id string, fn func(o *domain.Order)) (*domain.Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	o, ok := r.m[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	fn(o)
	return o.Clone(), nil
}

func (r *fakeRepo) note(o *domain.Order, content string) {
	r.seq++
	o.Notes = append(o.Notes, domain.Note{ID: fmt.Sprintf("n%d", r.seq), Content: content, CreatedAt: time.Unix(int64(r.seq), 0)})
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus, note string) (*domain.Order, error) {
	if err := r.expect(id, from); err != nil {
		return nil, err
	}
	return r.mutate(id, func(o *domain.Order) {
		o.Status = to
		r.note(o, note)
	})
}

func (r *fakeRepo) expect(id string, from domain.OrderStatus) error {
	if o, ok := r.m[id]; ok && o.Status != from {
		return domain.ErrOrderChanged
	}
	return nil
}

func (r *fakeRepo) PaymentComplete(_ context.Context, id string, from domain.OrderStatus, transactionID, note string) (*domain.Order, error) {
	if err := r.expect(id, from); err != nil {
		return nil, err
	}
	return r.mutate(id, func(o *domain.Order) {
		r.completions = append(r.completions, completion{OrderID: id, TransactionID: transactionID})
		if !o.Status.Paid() {
			o.Status = domain.OrderCompleted
		}
		if o.TransactionID == "" {
			o.TransactionID = transactionID
		}
		r.note(o, note)
	})
}

func (r *fakeRepo) AddNote(_ context.Context, id, note string) (*domain.Order, error) {
	return r.mutate(id, func(o *domain.Order) { r.note(o, note) })
}

func (r *fakeRepo) BeginPayment(_ context.Context, id, paymentMethod string, meta map[string]string, note string) (*domain.Order, error) {
	return r.mutate(id, func(o *domain.Order) {
		o.Status = domain.OrderPending
		o.PaymentMethod = paymentMethod
		if o.Meta == nil {
			o.Meta = map[string]string{}
		}
		for k, v := range meta {
			if _, ok := o.Meta[k]; !ok {
				o.Meta[k] = v
			}
		}
		r.note(o, note)
	})
}

func (r *fakeRepo) order(id string) *domain.Order {
	return r.m[id]
}

type fakeProcessor struct {
	reply    *gateway.Reply
	err      error
	endpoint string
	settings gateway.Settings
	payload  map[string]any
	calls    int
}

func (p *fakeProcessor) Send(_ context.Context, s gateway.Settings, endpoint string, payload map[string]any) (*gateway.Reply, error) {
	p.calls++
	p.endpoint = endpoint
	p.settings = s
	p.payload = payload
	return p.reply, p.err
}

func pendingOrder(id string) *domain.Order {
	return &domain.Order{
		OrderID:       id,
		Status:        domain.OrderPending,
		Total:         decimal.RequireFromString("100.00"),
		Currency:      "THB",
		PaymentMethod: gateway.CreditID,
		BillingEmail:  "buyer@example.com",
	}
}

func testDirectory(disableFallback bool) *gateway.Directory {
	var instances []gateway.Instance
	for _, m := range gateway.All() {
		instances = append(instances, gateway.Instance{
			ID:      m.ID,
			Title:   m.Title,
			Enabled: true,
			Method:  m,
			Settings: gateway.Settings{
				APIBaseURL:         "https://api.key2payment.com/",
				MerchantID:         "M001",
				Password:           "pw",
				DisableURLFallback: disableFallback,
			},
		})
	}
	return gateway.NewDirectory(instances)
}
