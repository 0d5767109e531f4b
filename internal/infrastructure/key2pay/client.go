package key2pay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"key2pay-backend/internal/domain"
	"key2pay-backend/internal/gateway"
	"key2pay-backend/internal/logging"
	"key2pay-backend/internal/redact"
)

const defaultTimeout = 60 * time.Second

// Client talks to the Key2Pay REST API. Credentials travel in the JSON body
// and as a basic auth header.
type Client struct {
	HTTP *http.Client
	Log  *zap.Logger
}

func New(timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{HTTP: &http.Client{Timeout: timeout}, Log: logging.OrNop(log)}
}

// Send posts payload to endpoint and decodes the processor reply. A reply
// with type "invalid" is returned without error; callers decide what it means.
func (c *Client) Send(ctx context.Context, s gateway.Settings, endpoint string, payload map[string]any) (*gateway.Reply, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("key2pay: merchant credentials are not configured")
	}
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["merchantid"] = s.MerchantID
	body["password"] = s.Password

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("key2pay: encode request: %w", err)
	}
	u := s.URL(endpoint)
	log := logging.OrNop(c.Log).With(zap.String("endpoint", endpoint))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.MerchantID, s.Password)
	if s.Debug {
		log.Debug("key2pay request",
			zap.String("url", u),
			zap.Any("headers", redact.Strings(flatten(req.Header))),
			zap.Any("payload", redact.Map(body)))
	}

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("key2pay: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("key2pay: read response: %w", err)
	}

	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil || data == nil {
		return nil, fmt.Errorf("key2pay: %s: unexpected response (HTTP %d)", endpoint, resp.StatusCode)
	}
	if s.Debug {
		log.Debug("key2pay response", zap.Int("status", resp.StatusCode), zap.Any("payload", redact.Map(data)))
	}
	return decodeReply(data), nil
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func decodeReply(data map[string]any) *gateway.Reply {
	text := func(k string) string {
		s, _ := domain.ScalarText(data[k])
		return s
	}
	r := &gateway.Reply{
		Type:          text("type"),
		Result:        text("result"),
		ResponseCode:  text("responsecode"),
		RedirectURL:   text("redirectUrl"),
		TransactionID: text("transactionid"),
		TrackID:       text("trackid"),
		Token:         text("token"),
		ErrorCodeTag:  text("error_code_tag"),
		ErrorText:     text("error_text"),
		Raw:           data,
	}
	if r.TransactionID == "" {
		r.TransactionID = text("tranid")
	}
	return r
}
