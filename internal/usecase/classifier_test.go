package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"key2pay-backend/internal/domain"
)

func orderIn(status domain.OrderStatus) *domain.Order {
	o := pendingOrder("501")
	o.Status = status
	return o
}

func TestClassify_CodeTable(t *testing.T) {
	c := Classifier{Unknown: UnknownApprove}
	cases := []struct {
		code   string
		kind   TransitionKind
		target domain.OrderStatus
	}{
		{"0", Complete, ""},
		{"CAPTURED", Complete, ""},
		{"9", SetStatus, domain.OrderPending},
		{"6", SetStatus, domain.OrderFailed},
		{"51", SetStatus, domain.OrderFailed},
		{"05", SetStatus, domain.OrderFailed},
		{"62", SetStatus, domain.OrderFailed},
		{"12", SetStatus, domain.OrderFailed},
		{"9998", SetStatus, domain.OrderFailed},
		{"1000", SetStatus, domain.OrderFailed},
	}
	for _, tc := range cases {
		tr := c.Classify(orderIn(domain.OrderPending), Outcome{Code: tc.code, TransactionID: "T1", ErrorText: "boom"})
		assert.Equal(t, tc.kind, tr.Kind, tc.code)
		assert.Equal(t, tc.target, tr.Target, tc.code)
		assert.Contains(t, tr.Note, "Code: "+tc.code, tc.code)
	}
}

func TestClassify_FailureNoteCarriesCodeAndErrorText(t *testing.T) {
	tr := Classifier{}.Classify(orderIn(domain.OrderPending), Outcome{Code: "51", ErrorText: "Insufficient Funds (NSF)"})
	assert.Contains(t, tr.Note, "Code: 51,")
	assert.Contains(t, tr.Note, "Insufficient Funds (NSF)")
	assert.Equal(t, FriendlyMessage("51"), tr.UserMessage)
}

// Unrecognized codes approve the payment unless the hold policy is configured.
func TestClassify_UnknownCodeApprovesByDefault(t *testing.T) {
	var c Classifier
	tr := c.Classify(orderIn(domain.OrderPending), Outcome{Code: "777", TransactionID: "T9"})
	assert.Equal(t, Complete, tr.Kind)
	assert.Equal(t, "T9", tr.TransactionID)
	assert.Contains(t, tr.Note, "unknown response code")

	tr = c.Classify(orderIn(domain.OrderPending), Outcome{Code: ""})
	assert.Equal(t, Complete, tr.Kind)
}

func TestClassify_UnknownCodeHoldPolicy(t *testing.T) {
	c := Classifier{Unknown: UnknownHold}
	tr := c.Classify(orderIn(domain.OrderPending), Outcome{Code: "777"})
	assert.Equal(t, SetStatus, tr.Kind)
	assert.Equal(t, domain.OrderOnHold, tr.Target)

	tr = c.Classify(orderIn(domain.OrderCompleted), Outcome{Code: "777"})
	assert.Equal(t, NoteOnly, tr.Kind)
}

func TestClassify_Monotonic(t *testing.T) {
	c := Classifier{Unknown: UnknownApprove}
	for _, st := range []domain.OrderStatus{domain.OrderProcessing, domain.OrderCompleted} {
		for _, code := range []string{"9", "6", "51", "05", "62", "12", "9998", "1000"} {
			tr := c.Classify(orderIn(st), Outcome{Code: code})
			assert.Equal(t, NoteOnly, tr.Kind, "%s on %s", code, st)
		}
	}

	tr := c.Classify(orderIn(domain.OrderFailed), Outcome{Code: "9"})
	assert.Equal(t, NoteOnly, tr.Kind)

	tr = c.Classify(orderIn(domain.OrderOnHold), Outcome{Code: "9"})
	assert.Equal(t, NoteOnly, tr.Kind)

	tr = c.Classify(orderIn(domain.OrderFailed), Outcome{Code: "0", TransactionID: "T2"})
	assert.Equal(t, Complete, tr.Kind)

	for _, st := range []domain.OrderStatus{domain.OrderRefunded, domain.OrderCancelled} {
		for _, code := range []string{"0", "9", "51", "777"} {
			assert.Equal(t, NoteOnly, c.Classify(orderIn(st), Outcome{Code: code}).Kind, "%s on %s", code, st)
		}
	}
}

func TestClassify_RepeatedApproval(t *testing.T) {
	o := orderIn(domain.OrderCompleted)
	o.TransactionID = "T1"

	tr := Classifier{}.Classify(o, Outcome{Code: "0", TransactionID: "T1"})
	assert.Equal(t, Complete, tr.Kind)

	tr = Classifier{}.Classify(o, Outcome{Code: "0", TransactionID: "T2"})
	assert.Equal(t, NoteOnly, tr.Kind)
	assert.Contains(t, tr.Note, "different transaction")
	assert.Contains(t, tr.Note, "T1")
	assert.Contains(t, tr.Note, "T2")
}

func TestClassify_AmountMismatchHolds(t *testing.T) {
	wrong := decimal.RequireFromString("99.99")
	tr := Classifier{}.Classify(orderIn(domain.OrderPending), Outcome{Code: "0", TransactionID: "T1", Amount: &wrong})
	assert.Equal(t, SetStatus, tr.Kind)
	assert.Equal(t, domain.OrderOnHold, tr.Target)
	assert.Contains(t, tr.Note, "amount mismatch")

	same := decimal.RequireFromString("100")
	tr = Classifier{}.Classify(orderIn(domain.OrderPending), Outcome{Code: "0", Amount: &same})
	assert.Equal(t, Complete, tr.Kind)
}

func TestClassify_DoesNotMutateOrder(t *testing.T) {
	o := orderIn(domain.OrderPending)
	before := o.Clone()
	Classifier{}.Classify(o, Outcome{Code: "51"})
	assert.Equal(t, before, o)
}
