package gateway

import (
	"errors"
	"net/url"
	"strings"
)

const DefaultAPIBaseURL = "https://api.key2payment.com/"

// Settings are the per-instance processor settings handed to the payment core.
type Settings struct {
	APIBaseURL         string `json:"-"`
	MerchantID         string `json:"-"`
	Password           string `json:"-"`
	DisableURLFallback bool   `json:"-"`
	Debug              bool   `json:"-"`
}

// Configured reports whether credentials are present.
func (s Settings) Configured() bool {
	return strings.TrimSpace(s.MerchantID) != "" && strings.TrimSpace(s.Password) != ""
}

// TestMode is true for sandbox merchants, whose processor redirect URLs are not usable.
func (s Settings) TestMode() bool {
	return strings.Contains(s.MerchantID, "TEST")
}

// URL joins the API base and an endpoint with exactly one slash between them.
func (s Settings) URL(endpoint string) string {
	base := s.APIBaseURL
	if base == "" {
		base = DefaultAPIBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// Validate rejects an API base that is not an absolute http(s) URL.
func (s Settings) Validate() error {
	if s.APIBaseURL == "" {
		return nil
	}
	u, err := url.Parse(s.APIBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("API base URL must be a valid URL")
	}
	return nil
}

// Instance is one configured gateway, reachable at /wc-api/{ID}.
type Instance struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Enabled  bool     `json:"enabled"`
	Method   Method   `json:"-"`
	Settings Settings `json:"-"`
}

// Available reports whether buyers may pay an order in currency with this instance.
func (i Instance) Available(currency string) bool {
	return i.Enabled && i.Settings.Configured() && i.Method.SupportsCurrency(currency)
}

// Directory indexes configured instances by id.
type Directory struct {
	order []string
	byID  map[string]Instance
}

func NewDirectory(instances []Instance) *Directory {
	d := &Directory{byID: make(map[string]Instance, len(instances))}
	for _, in := range instances {
		in.ID = strings.ToLower(in.ID)
		if _, dup := d.byID[in.ID]; !dup {
			d.order = append(d.order, in.ID)
		}
		d.byID[in.ID] = in
	}
	return d
}

func (d *Directory) Get(id string) (Instance, bool) {
	in, ok := d.byID[strings.ToLower(id)]
	return in, ok
}

// Enabled returns enabled instances in configuration order.
func (d *Directory) Enabled() []Instance {
	out := make([]Instance, 0, len(d.order))
	for _, id := range d.order {
		if in := d.byID[id]; in.Enabled {
			out = append(out, in)
		}
	}
	return out
}
