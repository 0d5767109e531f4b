package gateway

// Reply is a decoded processor API response.
type Reply struct {
	Type          string
	Result        string
	ResponseCode  string
	RedirectURL   string
	TransactionID string
	TrackID       string
	Token         string
	ErrorCodeTag  string
	ErrorText     string
	Raw           map[string]any
}

// Valid is the processor's own acceptance flag.
func (r *Reply) Valid() bool {
	return r != nil && r.Type == "valid"
}

// ErrorMessage prefers the processor's error text over its tag.
func (r *Reply) ErrorMessage() string {
	switch {
	case r == nil:
		return ""
	case r.ErrorText != "":
		return r.ErrorText
	case r.ErrorCodeTag != "":
		return r.ErrorCodeTag
	}
	return r.Result
}
