package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/payment"
)

// MemoryRepository is an in-process PaymentRepository. It stores and returns
// copies, so callers never share state with the store.
type MemoryRepository struct {
	mu        sync.RWMutex
	nextID    int64
	byID      map[int64]*payment.Payment
	byPgOrder map[string]int64
}

var _ PaymentRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:      make(map[int64]*payment.Payment),
		byPgOrder: make(map[string]int64),
	}
}

func (r *MemoryRepository) Save(_ context.Context, p *payment.Payment) error {
	if p == nil {
		return apperr.New(apperr.InvalidArgument, "payment cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == 0 {
		if _, exists := r.byPgOrder[p.PgOrderID]; exists {
			return ErrDuplicatePgOrderID
		}
		r.nextID++
		p.ID = r.nextID
		p.Version = 1
		r.byID[p.ID] = p.Clone()
		r.byPgOrder[p.PgOrderID] = p.ID
		return nil
	}

	stored, ok := r.byID[p.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != p.Version {
		return ErrStaleVersion
	}
	if stored.PgOrderID != p.PgOrderID {
		return apperr.New(apperr.InvalidArgument, "pgOrderId cannot change")
	}
	next := p.Clone()
	next.CreatedAt = stored.CreatedAt
	next.Version++
	r.byID[p.ID] = next
	p.Version = next.Version
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryRepository) FindByPgOrderID(ctx context.Context, pgOrderID string) (*payment.Payment, error) {
	r.mu.RLock()
	id, ok := r.byPgOrder[pgOrderID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *MemoryRepository) findOne(match func(*payment.Payment) bool) (*payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byID {
		if match(p) {
			return p.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) FindByOrderID(_ context.Context, orderID string) (*payment.Payment, error) {
	if orderID == "" {
		return nil, ErrNotFound
	}
	return r.findOne(func(p *payment.Payment) bool { return p.OrderID == orderID })
}

func (r *MemoryRepository) FindByPgTid(_ context.Context, pgTid string) (*payment.Payment, error) {
	if pgTid == "" {
		return nil, ErrNotFound
	}
	return r.findOne(func(p *payment.Payment) bool { return p.PgTid == pgTid })
}

func (r *MemoryRepository) filter(match func(*payment.Payment) bool) []*payment.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*payment.Payment, 0)
	for _, p := range r.byID {
		if match(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}

func newestFirst(ps []*payment.Payment) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID > ps[j].ID
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}

func (r *MemoryRepository) FindByUserID(_ context.Context, userID string) ([]*payment.Payment, error) {
	out := r.filter(func(p *payment.Payment) bool { return p.UserID == userID })
	newestFirst(out)
	return out, nil
}

func (r *MemoryRepository) FindByUserIDAndStatus(_ context.Context, userID string, status payment.Status) ([]*payment.Payment, error) {
	out := r.filter(func(p *payment.Payment) bool { return p.UserID == userID && p.Status == status })
	newestFirst(out)
	return out, nil
}

func (r *MemoryRepository) FindByStatus(_ context.Context, status payment.Status) ([]*payment.Payment, error) {
	out := r.filter(func(p *payment.Payment) bool { return p.Status == status })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }
