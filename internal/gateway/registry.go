package gateway

var methods = []Method{
	{
		ID:          CreditID,
		Title:       "Credit Card (Key2Pay)",
		PaymentType: "BANKCARD",
		Endpoint:    "/PaymentToken/Create",
	},
	{
		ID:          ThaiDebitID,
		Title:       "Thai QR Debit (Key2Pay)",
		PaymentType: "THAI_DEBIT",
		Endpoint:    "/transaction/s2s",
		Fields: []CheckoutField{
			{Name: "payer_bank_code", Label: "Bank Code", Placeholder: "e.g., 014", Required: true},
			{Name: "payer_account_no", Label: "Bank Account Number", Placeholder: "Enter your debit account number", Required: true},
			{Name: "payer_account_name", Label: "Bank Account Name", Placeholder: "Name on your debit account", Required: true},
		},
		SessionReply: true,
	},
	{
		ID:          InstaPayID,
		Title:       "InstaPay (Key2Pay)",
		PaymentType: "PHQR",
		Endpoint:    "/transaction/s2s",
		Currencies:  []string{"PHP"},
	},
}

// Lookup returns the built-in variant with the given id.
func Lookup(id string) (Method, bool) {
	for _, m := range methods {
		if m.ID == id {
			return m, true
		}
	}
	return Method{}, false
}

// All returns the built-in variants in display order.
func All() []Method {
	return append([]Method(nil), methods...)
}
