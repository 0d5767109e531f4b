package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"key2pay-backend/internal/domain"
)

// OrderReader is the read side of the order store.
type OrderReader interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
}

// ParseTrackID extracts the order id from a "{order_id}_{unix_timestamp}" track id.
func ParseTrackID(trackID string) (string, error) {
	parts := strings.SplitN(trackID, "_", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedTrackID, trackID)
	}
	return parts[0], nil
}

type Locator struct {
	Orders OrderReader
}

// Locate resolves a track id to its order. A well-formed id for a missing order
// yields domain.ErrOrderNotFound, a malformed one ErrMalformedTrackID.
func (l *Locator) Locate(ctx context.Context, trackID string) (*domain.Order, error) {
	id, err := ParseTrackID(trackID)
	if err != nil {
		return nil, err
	}
	o, err := l.Orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, fmt.Errorf("order %s for track id %s: %w", id, trackID, err)
		}
		return nil, err
	}
	return o, nil
}

// VerifyToken enforces the stored payment token when both sides carry one.
func VerifyToken(o *domain.Order, token string) error {
	stored := o.MetaValue(domain.MetaToken)
	if token == "" || stored == "" {
		return nil
	}
	if token != stored {
		return fmt.Errorf("order %s: %w", o.OrderID, ErrTokenMismatch)
	}
	return nil
}
