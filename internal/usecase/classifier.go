package usecase

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"key2pay-backend/internal/domain"
)

type TransitionKind int

const (
	// NoteOnly leaves the status untouched and records a note.
	NoteOnly TransitionKind = iota
	// SetStatus moves the order to Target and records a note.
	SetStatus
	// Complete runs the payment-completion operation with TransactionID.
	Complete
)

func (k TransitionKind) String() string {
	switch k {
	case SetStatus:
		return "set_status"
	case Complete:
		return "complete"
	}
	return "note_only"
}

// Transition is the outcome of classifying one notification against one order.
type Transition struct {
	Kind          TransitionKind
	Target        domain.OrderStatus
	Note          string
	UserMessage   string
	Code          string
	TransactionID string
}

// UnknownCodePolicy decides what an unrecognized processor code does to an order.
type UnknownCodePolicy string

const (
	UnknownApprove UnknownCodePolicy = "approve"
	UnknownHold    UnknownCodePolicy = "hold"
)

func (p UnknownCodePolicy) Valid() bool {
	return p == UnknownApprove || p == UnknownHold
}

// Outcome is the normalized payment result handed to the classifier.
type Outcome struct {
	Code          string
	TransactionID string
	ErrorText     string
	// Amount is the processor-reported amount, nil when not sent.
	Amount *decimal.Decimal
}

type Classifier struct {
	Unknown UnknownCodePolicy
}

type codeClass int

const (
	classUnknown codeClass = iota
	classApproved
	classPending
	classFailed
)

func classOf(code string) codeClass {
	switch code {
	case CodeApproved, CodeCaptured:
		return classApproved
	case CodeDebitPending:
		return classPending
	case CodeDebitFailed, CodeInsufficientFunds, CodeDoNotHonour, CodeRestrictedCard,
		CodeInvalidTransaction, CodeTimeout, CodeInvalidCredentials:
		return classFailed
	}
	return classUnknown
}

// Classify maps an outcome onto the order. It never mutates o, and its rules are
// monotonic: paid orders never go back to pending or failed, failed orders never
// go back to pending, refunded and cancelled orders are never moved.
func (c Classifier) Classify(o *domain.Order, out Outcome) Transition {
	code := out.Code
	t := Transition{Code: code, TransactionID: out.TransactionID}
	status := o.Status

	if status.Closed() {
		t.Kind = NoteOnly
		t.Note = fmt.Sprintf("Key2Pay notification ignored for %s order. Transaction ID: %s, Code: %s - %s",
			status, out.TransactionID, code, StatusMessage(code))
		t.UserMessage = ReturnPageMessage(o)
		return t
	}

	class := classOf(code)
	if class == classUnknown && c.Unknown == UnknownHold {
		if status.Paid() {
			t.Kind = NoteOnly
		} else {
			t.Kind = SetStatus
			t.Target = domain.OrderOnHold
		}
		t.Note = fmt.Sprintf("Key2Pay payment returned an unknown response code, held for review. Transaction ID: %s, Code: %s, Error: %s",
			out.TransactionID, code, out.ErrorText)
		t.UserMessage = msgReturnOther
		return t
	}

	switch class {
	case classApproved, classUnknown:
		return c.approve(o, out, class == classUnknown)
	case classPending:
		t.Note = fmt.Sprintf("Key2Pay payment is processing. Transaction ID: %s, Code: %s - %s",
			out.TransactionID, code, StatusMessage(code))
		t.UserMessage = msgReturnPending
		if status == domain.OrderPending {
			t.Kind = SetStatus
			t.Target = domain.OrderPending
			return t
		}
		t.Kind = NoteOnly
		t.Note = fmt.Sprintf("Key2Pay processing notice ignored, order is %s. Transaction ID: %s, Code: %s - %s",
			status, out.TransactionID, code, StatusMessage(code))
		t.UserMessage = ReturnPageMessage(o)
		return t
	default:
		t.UserMessage = FriendlyMessage(code)
		if status.Paid() {
			t.Kind = NoteOnly
			t.Note = fmt.Sprintf("Key2Pay failure notice ignored, order is already paid. Transaction ID: %s, Code: %s, Error: %s",
				out.TransactionID, code, out.ErrorText)
			t.UserMessage = msgReturnConfirmed
			return t
		}
		t.Kind = SetStatus
		t.Target = domain.OrderFailed
		t.Note = fmt.Sprintf("Key2Pay payment declined. Code: %s, Error: %s - %s",
			code, out.ErrorText, StatusMessage(code))
		return t
	}
}

func (c Classifier) approve(o *domain.Order, out Outcome, unknown bool) Transition {
	code := out.Code
	t := Transition{Code: code, TransactionID: out.TransactionID, UserMessage: FriendlyMessage(CodeApproved)}

	if o.Status.Paid() {
		if o.TransactionID != "" && out.TransactionID != "" && o.TransactionID != out.TransactionID {
			t.Kind = NoteOnly
			t.Note = fmt.Sprintf("Key2Pay approval received for an already paid order with a different transaction. Recorded: %s, Received: %s, Code: %s",
				o.TransactionID, out.TransactionID, code)
			t.UserMessage = msgReturnConfirmed
			return t
		}
		t.Kind = Complete
		t.Note = fmt.Sprintf("Key2Pay payment confirmation repeated. Transaction ID: %s, Code: %s - %s",
			out.TransactionID, code, StatusMessage(code))
		return t
	}

	if mismatch(o.Total, out.Amount) {
		t.Kind = SetStatus
		t.Target = domain.OrderOnHold
		t.Note = fmt.Sprintf("Key2Pay payment received, but amount mismatch. Expected: %s, Received: %s. Transaction ID: %s, Code: %s",
			o.Total.String(), out.Amount.String(), out.TransactionID, code)
		t.UserMessage = msgReturnOther
		return t
	}

	t.Kind = Complete
	switch {
	case unknown:
		t.Note = fmt.Sprintf("Key2Pay payment processed with unknown response code. Transaction ID: %s, Code: %s - %s",
			out.TransactionID, displayCode(code), StatusMessage(code))
	case code == CodeCaptured:
		t.Note = fmt.Sprintf("Key2Pay payment completed successfully. Transaction ID: %s, Code: %s - %s",
			out.TransactionID, code, StatusMessage(code))
	default:
		t.Note = fmt.Sprintf("Key2Pay payment approved. Transaction ID: %s, Code: %s - %s",
			out.TransactionID, code, StatusMessage(code))
	}
	return t
}

func mismatch(total decimal.Decimal, reported *decimal.Decimal) bool {
	if reported == nil || !total.IsPositive() {
		return false
	}
	return !total.Equal(*reported)
}

func displayCode(code string) string {
	if strings.TrimSpace(code) == "" {
		return "(none)"
	}
	return code
}
