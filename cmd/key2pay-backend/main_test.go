package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"key2pay-backend/internal/config"
	"key2pay-backend/internal/usecase"
)

func TestServeFlagsOverrideEnvironment(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 7000
	cfg.DBDriver = "postgres"

	cmd := serveCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9090", "--debug"}))
	var f serveFlags
	f.port, _ = cmd.Flags().GetInt("port")
	f.debug, _ = cmd.Flags().GetBool("debug")
	applyServeFlags(cmd, &cfg, f)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestBuildServerWithMemoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.MerchantID = "M001"
	cfg.Password = "pw"
	store, err := openStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	srv, err := buildServer(cfg, store, zap.NewNop())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/gateways", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "key2pay_credit")
}

func TestAdminTokenCommand(t *testing.T) {
	t.Setenv("KEY2PAY_JWT_SECRET", "s3cret")
	cmd := tokenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--subject", "ops"})
	require.NoError(t, cmd.Execute())

	sub, err := (&usecase.AdminAuthService{JWTSecret: "s3cret"}).Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", sub)
}

func TestMigrateRejectsMemoryStore(t *testing.T) {
	t.Setenv("KEY2PAY_DB_DRIVER", "memory")
	cmd := migrateCmd()
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}
