package usecase

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"key2pay-backend/internal/domain"
)

const (
	approveT1 = `{"responsecode":"0","trackid":"501_1690000000","transactionid":"T1"}`
	declineT2 = `{"responsecode":"EGP51","trackid":"501_1690000000","transactionid":"T2"}`
)

func TestWebhook_DeclineAfterInterleavedApprovalKeepsCompletion(t *testing.T) {
	repo := newFakeRepo(pendingOrder("501"))
	svc, logs := newReconcile(repo, false)
	ctx := context.Background()

	repo.afterGet = func() {
		ack, err := svc.HandleWebhook(ctx, "key2pay_credit", []byte(approveT1))
		require.NoError(t, err)
		require.True(t, ack.Success)
	}
	ack, err := svc.HandleWebhook(ctx, "key2pay_credit", []byte(declineT2))
	require.NoError(t, err)
	assert.True(t, ack.Success)

	o := repo.order("501")
	assert.Equal(t, domain.OrderCompleted, o.Status)
	assert.Equal(t, "T1", o.TransactionID)
	require.Len(t, repo.completions, 1)
	require.Len(t, o.Notes, 2)
	assert.Contains(t, o.Notes[1].Content, "Code: 51")
	assert.NotEmpty(t, logs.FilterMessage("order changed while reconciling, classifying again").All())
}

func TestWebhook_ApprovalAfterInterleavedDeclineReclassifiesFromFailed(t *testing.T) {
	repo := newFakeRepo(pendingOrder("501"))
	svc, _ := newReconcile(repo, false)
	ctx := context.Background()

	repo.afterGet = func() {
		_, err := svc.HandleWebhook(ctx, "key2pay_credit", []byte(declineT2))
		require.NoError(t, err)
	}
	_, err := svc.HandleWebhook(ctx, "key2pay_credit", []byte(approveT1))
	require.NoError(t, err)

	o := repo.order("501")
	assert.Equal(t, domain.OrderCompleted, o.Status)
	assert.Equal(t, "T1", o.TransactionID)
	require.Len(t, repo.completions, 1)
	require.Len(t, o.Notes, 2)
	assert.Contains(t, o.Notes[0].Content, "declined")
	assert.Contains(t, o.Notes[1].Content, "approved")
}

func TestFallback_InterleavedWebhookApprovalWins(t *testing.T) {
	repo := newFakeRepo(pendingOrder("501"))
	svc, logs := newReconcile(repo, false)
	ctx := context.Background()

	repo.afterGet = func() {
		_, err := svc.HandleWebhook(ctx, "key2pay_credit", []byte(approveT1))
		require.NoError(t, err)
	}
	ack, err := svc.Reconcile(ctx, svc.FallbackNotification("501", url.Values{
		"responsecode": {"EGP51"},
		"trackid":      {"501_1"},
	}))
	require.NoError(t, err)
	assert.True(t, ack.Success)

	o := repo.order("501")
	assert.Equal(t, domain.OrderCompleted, o.Status)
	assert.Equal(t, "T1", o.TransactionID)
	require.Len(t, o.Notes, 1)
	assert.NotContains(t, o.Notes[0].Content, "URL parameter fallback")
	assert.NotEmpty(t, logs.FilterMessage("fallback skipped, order processed meanwhile").All())
}

func TestWithCurrent_GivesUpAfterRepeatedChanges(t *testing.T) {
	repo := newFakeRepo(pendingOrder("501"))
	o := repo.order("501")

	calls := 0
	_, err := withCurrent(context.Background(), repo, o, func(*domain.Order) (*domain.Order, error) {
		calls++
		return nil, domain.ErrOrderChanged
	})
	assert.ErrorIs(t, err, domain.ErrOrderChanged)
	assert.Equal(t, maxWriteAttempts, calls)
}
