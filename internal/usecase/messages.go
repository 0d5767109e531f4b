package usecase

import (
	"regexp"

	"key2pay-backend/internal/domain"
)

// Processor response codes after normalization.
const (
	CodeApproved           = "0"
	CodeCaptured           = "CAPTURED"
	CodeDebitPending       = "9"
	CodeDebitFailed        = "6"
	CodeInsufficientFunds  = "51"
	CodeDoNotHonour        = "05"
	CodeRestrictedCard     = "62"
	CodeInvalidTransaction = "12"
	CodeTimeout            = "9998"
	CodeInvalidCredentials = "1000"
)

const (
	msgGenericFailure   = "Sorry, there was an unexpected issue with your payment. Please try again or contact support."
	msgFailedOrder      = "Your payment was not successful. Please try again or contact support if you believe this is an error."
	msgReturnPending    = "Your order is awaiting payment confirmation from Key2Pay. We will update your order status once the payment is confirmed via our secure webhook system."
	msgReturnConfirmed  = "Thank you! Your payment has been confirmed and your order is being processed."
	msgReturnOther      = "Thank you for your order. We will process your payment shortly."
	failedNoteScanDepth = 10
)

var friendly = map[string]string{
	CodeApproved:           "Your payment has been approved successfully!",
	CodeInsufficientFunds:  "Sorry, your payment could not be processed due to insufficient funds. Please check your account balance and try again.",
	CodeDoNotHonour:        "Sorry, your payment was declined by your bank. Please contact your bank or try a different payment method.",
	CodeRestrictedCard:     "Sorry, this card cannot be used for this transaction. Please try a different card or contact your bank.",
	CodeInvalidTransaction: "Sorry, there was an issue with the transaction details. Please check your information and try again.",
	CodeTimeout:            "Sorry, the payment request timed out. Please try again or contact support if the problem persists.",
}

var statusMessages = map[string]string{
	CodeApproved:           "Payment approved successfully.",
	CodeCaptured:           "Payment captured successfully.",
	CodeInsufficientFunds:  "Payment failed: Insufficient funds in the account.",
	CodeDoNotHonour:        "Payment failed: Do not honour - the transaction was declined by the bank.",
	CodeRestrictedCard:     "Payment failed: Restricted card - this card cannot be used for this transaction.",
	CodeInvalidTransaction: "Payment failed: Invalid transaction - the transaction details are not valid.",
	CodeTimeout:            "Payment failed: Transaction timeout - the request took too long to process.",
	CodeDebitPending:       "Payment is processing, awaiting confirmation.",
	CodeDebitFailed:        "Payment failed: The transaction was not completed.",
	CodeInvalidCredentials: "Payment failed: Invalid merchant credentials.",
}

// failedNoteCodes are the codes the failed-order message can recover from
// notes, most specific first.
var failedNoteCodes = []string{
	CodeInsufficientFunds,
	CodeDoNotHonour,
	CodeRestrictedCard,
	CodeInvalidTransaction,
	CodeTimeout,
}

// codeMarker matches the "Code: X" marker every reconciliation note carries.
var codeMarker = regexp.MustCompile(`Code: ([0-9A-Za-z]+)`)

// FriendlyMessage is the buyer-facing text for a normalized code.
func FriendlyMessage(code string) string {
	if m, ok := friendly[code]; ok {
		return m
	}
	return msgGenericFailure
}

// StatusMessage is the operator-facing description used in order notes.
func StatusMessage(code string) string {
	if m, ok := statusMessages[code]; ok {
		return m
	}
	return "Payment processed with unknown response code."
}

// FriendlyMessageForOrder recovers the decline reason of a failed order from its
// most recent notes. The newest note carrying a known code wins.
func FriendlyMessageForOrder(o *domain.Order) string {
	for _, n := range o.RecentNotes(failedNoteScanDepth) {
		seen := map[string]bool{}
		for _, m := range codeMarker.FindAllStringSubmatch(n.Content, -1) {
			seen[m[1]] = true
		}
		for _, code := range failedNoteCodes {
			if seen[code] {
				return FriendlyMessage(code)
			}
		}
	}
	return msgFailedOrder
}

// ReturnPageMessage is what the buyer sees on the order-received page.
func ReturnPageMessage(o *domain.Order) string {
	switch {
	case o.Status == domain.OrderPending:
		return msgReturnPending
	case o.Status.Paid():
		return msgReturnConfirmed
	case o.Status == domain.OrderFailed:
		return FriendlyMessageForOrder(o)
	}
	return msgReturnOther
}
