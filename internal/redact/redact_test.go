package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap_ReplacesDeniedFields(t *testing.T) {
	in := map[string]any{"password": "secret", "amount": 10}

	out := Map(in)

	assert.Equal(t, map[string]any{"password": Marker, "amount": 10}, out)
	assert.Equal(t, "secret", in["password"], "input must not be modified")
}

func TestMap_CaseSensitive(t *testing.T) {
	out := Map(map[string]any{"Password": "x", "authorization": "y", "Authorization": "Basic abc"})

	assert.Equal(t, "x", out["Password"])
	assert.Equal(t, "y", out["authorization"])
	assert.Equal(t, Marker, out["Authorization"])
}

func TestMap_WebhookPayload(t *testing.T) {
	in := map[string]any{
		"type":          "valid",
		"responsecode":  "EGP9",
		"trackid":       "501_1690000000",
		"token":         "1d85ca154e754b4596128b00a5b21d1c",
		"merchantid":    "TEST001",
		"transactionid": "1001547",
		"browser_info":  map[string]any{"user_agent": "curl", "card": "4111"},
	}

	out := Map(in)

	assert.Equal(t, Marker, out["trackid"])
	assert.Equal(t, Marker, out["token"])
	assert.Equal(t, Marker, out["merchantid"])
	assert.Equal(t, "1001547", out["transactionid"])
	assert.Equal(t, "EGP9", out["responsecode"])
	nested := out["browser_info"].(map[string]any)
	assert.Equal(t, Marker, nested["card"])
	assert.Equal(t, "curl", nested["user_agent"])
	assert.Equal(t, "4111", in["browser_info"].(map[string]any)["card"])
}

func TestMap_Nil(t *testing.T) {
	assert.Nil(t, Map(nil))
	assert.Nil(t, Strings(nil))
}

func TestStrings(t *testing.T) {
	out := Strings(map[string]string{"Content-Type": "application/json", "Authorization": "Bearer x"})
	assert.Equal(t, "application/json", out["Content-Type"])
	assert.Equal(t, Marker, out["Authorization"])
}
