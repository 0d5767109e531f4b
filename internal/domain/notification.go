package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceWebhook     Source = "webhook"
	SourceURLFallback Source = "url_fallback"
)

// Field is a provider value as it arrived: a plain string or a nested object.
type Field interface {
	isField()
}

type Scalar string

func (Scalar) isField() {}

type Structured map[string]any

func (Structured) isField() {}

// FieldOf wraps a value decoded from JSON or a query string.
// Arrays contribute their first element.
func FieldOf(v any) Field {
	switch t := v.(type) {
	case map[string]any:
		return Structured(t)
	case []any:
		if len(t) == 0 {
			return Scalar("")
		}
		return FieldOf(t[0])
	case []string:
		if len(t) == 0 {
			return Scalar("")
		}
		return Scalar(t[0])
	default:
		s, _ := ScalarText(v)
		return Scalar(s)
	}
}

// ScalarText renders a non-container value as text. ok is false for nil and containers.
func ScalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case Scalar:
		return string(t), true
	}
	return "", false
}

// Notification is one inbound payment result. It is never persisted.
type Notification struct {
	Source     Source
	Gateway    string
	OrderID    string
	Fields     map[string]any
	ReceivedAt time.Time

	Type          string
	Result        string
	StatusCode    string
	TrackID       string
	TransactionID string
	Token         string
	ErrorText     string
	Description   string
	Amount        *decimal.Decimal
}

// Field returns the raw field for key, or nil when the provider did not send it.
func (n *Notification) Field(key string) Field {
	v, ok := n.Fields[key]
	if !ok || v == nil {
		return nil
	}
	return FieldOf(v)
}

// Text returns the scalar value of key, or "" when absent or structured.
func (n *Notification) Text(key string) string {
	s, _ := ScalarText(n.Fields[key])
	return s
}
