package repo

import (
	"key2pay-backend/internal/domain"
)

// The helpers below apply one store operation to an order already loaded under
// the store's lock. Each returns the metadata entries it added.

// expectStatus guards conditional writes against a status read outside the lock.
func expectStatus(o *domain.Order, from domain.OrderStatus) error {
	if o.Status != from {
		return domain.ErrOrderChanged
	}
	return nil
}

func completePayment(o *domain.Order, transactionID string) map[string]string {
	if !o.Status.Paid() {
		o.Status = domain.OrderCompleted
	}
	if o.TransactionID != "" || transactionID == "" {
		return nil
	}
	o.TransactionID = transactionID
	return setMeta(o, map[string]string{domain.MetaTransactionID: transactionID})
}

func beginPayment(o *domain.Order, paymentMethod string, meta map[string]string) map[string]string {
	o.Status = domain.OrderPending
	o.PaymentMethod = paymentMethod
	return setMeta(o, meta)
}

// setMeta stores entries whose key is not set yet. Stored metadata is never overwritten.
func setMeta(o *domain.Order, meta map[string]string) map[string]string {
	var added map[string]string
	for k, v := range meta {
		if v == "" {
			continue
		}
		if _, ok := o.Meta[k]; ok {
			continue
		}
		if o.Meta == nil {
			o.Meta = map[string]string{}
		}
		if added == nil {
			added = map[string]string{}
		}
		o.Meta[k] = v
		added[k] = v
	}
	return added
}
