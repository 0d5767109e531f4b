package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"key2pay-backend/internal/domain"
	"key2pay-backend/internal/gateway"
)

func newPayments(repo *fakeRepo, proc *fakeProcessor, dir *gateway.Directory) *PaymentService {
	return &PaymentService{
		Repo:          repo,
		Gateways:      dir,
		Processor:     proc,
		PublicBaseURL: "https://shop.example/",
		ShopName:      "Example Shop",
		Now:           func() time.Time { return time.Unix(1690000000, 0) },
	}
}

func TestInitiate_Credit(t *testing.T) {
	repo := newFakeRepo(pendingOrder("501"))
	proc := &fakeProcessor{reply: &gateway.Reply{
		Type: "valid", Result: "Processing", RedirectURL: "https://api.key2payment.com/transaction/Redirect?ID=1",
		TransactionID: "1001547", Token: "tok-1", TrackID: "501_1690000000",
	}}
	svc := newPayments(repo, proc, testDirectory(false))

	res, err := svc.Initiate(context.Background(), InitiateRequest{OrderID: "501", GatewayID: "key2pay_credit", CustomerIP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.key2payment.com/transaction/Redirect?ID=1", res.Redirect)

	assert.Equal(t, "/PaymentToken/Create", proc.endpoint)
	assert.Equal(t, "M001", proc.settings.MerchantID)
	assert.Equal(t, "501_1690000000", proc.payload["trackid"])
	assert.Equal(t, "https://shop.example/checkout/order-received/501", proc.payload["returnUrl"])
	assert.Equal(t, "https://shop.example/wc-api/key2pay_credit", proc.payload["serverUrl"])
	assert.Equal(t, "Order 501 from Example Shop", proc.payload["productdesc"])

	o := repo.order("501")
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, "tok-1", o.Meta[domain.MetaToken])
	assert.Equal(t, "1001547", o.Meta[domain.MetaTransactionID])
	assert.Equal(t, "501_1690000000", o.Meta[domain.MetaTrackID])
	assert.Len(t, o.Notes, 1)
}

func TestInitiate_RefusesSecondSession(t *testing.T) {
	o := pendingOrder("501")
	o.Meta = map[string]string{domain.MetaToken: "abc"}
	proc := &fakeProcessor{}
	svc := newPayments(newFakeRepo(o), proc, testDirectory(false))

	_, err := svc.Initiate(context.Background(), InitiateRequest{OrderID: "501", GatewayID: "key2pay_credit"})
	var conflict ErrConflict
	assert.True(t, errors.As(err, &conflict))
	assert.Zero(t, proc.calls)
}

func TestInitiate_NotSuccessful(t *testing.T) {
	repo := newFakeRepo(pendingOrder("501"))
	proc := &fakeProcessor{reply: &gateway.Reply{
		Type: "valid", Result: "Not Successful", RedirectURL: "https://x",
		Raw: map[string]any{"responsecode": "THB51"},
	}}
	svc := newPayments(repo, proc, testDirectory(false))

	_, err := svc.Initiate(context.Background(), InitiateRequest{OrderID: "501", GatewayID: "key2pay_credit"})
	var rejected *ErrPaymentRejected
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "51", rejected.Code)
	assert.Equal(t, FriendlyMessage("51"), rejected.Message)
	assert.Empty(t, repo.order("501").Meta)
}

func TestInitiate_ThaiDebitNeedsSessionReply(t *testing.T) {
	repo := newFakeRepo(pendingOrder("501"))
	proc := &fakeProcessor{reply: &gateway.Reply{Type: "valid", RedirectURL: "https://x", TransactionID: "T1"}}
	svc := newPayments(repo, proc, testDirectory(false))

	fields := map[string]string{"payer_bank_code": "014", "payer_account_no": "123", "payer_account_name": "A"}
	_, err := svc.Initiate(context.Background(), InitiateRequest{OrderID: "501", GatewayID: "key2pay_thai_debit", Fields: fields})
	var rejected *ErrPaymentRejected
	assert.True(t, errors.As(err, &rejected))

	_, err = svc.Initiate(context.Background(), InitiateRequest{OrderID: "501", GatewayID: "key2pay_thai_debit"})
	var bad ErrBadRequest
	assert.True(t, errors.As(err, &bad))
}

func TestInitiate_TestMerchantRedirectsToReturnPage(t *testing.T) {
	credit, _ := gateway.Lookup(gateway.CreditID)
	dir := gateway.NewDirectory([]gateway.Instance{{
		ID: gateway.CreditID, Enabled: true, Method: credit,
		Settings: gateway.Settings{MerchantID: "TEST001", Password: "pw"},
	}})
	proc := &fakeProcessor{reply: &gateway.Reply{Type: "valid", RedirectURL: "https://invalid", Token: "t"}}
	svc := newPayments(newFakeRepo(pendingOrder("501")), proc, dir)

	res, err := svc.Initiate(context.Background(), InitiateRequest{OrderID: "501", GatewayID: gateway.CreditID})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/checkout/order-received/501", res.Redirect)
}

func TestInitiate_InstaPayCurrency(t *testing.T) {
	proc := &fakeProcessor{}
	svc := newPayments(newFakeRepo(pendingOrder("501")), proc, testDirectory(false))

	_, err := svc.Initiate(context.Background(), InitiateRequest{OrderID: "501", GatewayID: gateway.InstaPayID})
	var bad ErrBadRequest
	assert.True(t, errors.As(err, &bad))
	assert.Zero(t, proc.calls)
}

func TestInitiate_TransportError(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("dial tcp: timeout")}
	svc := newPayments(newFakeRepo(pendingOrder("501")), proc, testDirectory(false))

	_, err := svc.Initiate(context.Background(), InitiateRequest{OrderID: "501", GatewayID: gateway.CreditID})
	assert.ErrorContains(t, err, "dial tcp")
}

func paidOrder(id string) *domain.Order {
	o := pendingOrder(id)
	o.Status = domain.OrderCompleted
	o.TransactionID = "T1"
	o.Meta = map[string]string{domain.MetaTransactionID: "T1", domain.MetaTrackID: id + "_1690000000", domain.MetaToken: "tok"}
	return o
}

func TestRefund_Full(t *testing.T) {
	repo := newFakeRepo(paidOrder("501"))
	proc := &fakeProcessor{reply: &gateway.Reply{Type: "valid", Result: "CAPTURED"}}
	svc := newPayments(repo, proc, testDirectory(false))

	res, err := svc.Refund(context.Background(), RefundRequest{OrderID: "501", Reason: "customer request"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.Equal(t, "/transaction/refund", proc.endpoint)
	assert.Equal(t, "T1", proc.payload["transactionid"])
	assert.Equal(t, "T1", proc.payload["tranid"])
	assert.Equal(t, "501_1690000000", proc.payload["trackid"])
	assert.Equal(t, json.Number("100"), proc.payload["bill_amount"])
	assert.Equal(t, "THB", proc.payload["bill_currencycode"])

	o := repo.order("501")
	assert.Equal(t, domain.OrderRefunded, o.Status)
	require.Len(t, o.Notes, 1)
	assert.Contains(t, o.Notes[0].Content, "Refund successful")
}

func TestRefund_PartialKeepsStatus(t *testing.T) {
	repo := newFakeRepo(paidOrder("501"))
	proc := &fakeProcessor{reply: &gateway.Reply{Type: "valid", Result: "Pending", ResponseCode: "0"}}
	svc := newPayments(repo, proc, testDirectory(false))

	res, err := svc.Refund(context.Background(), RefundRequest{OrderID: "501", Amount: decimal.RequireFromString("40")})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.OrderCompleted, repo.order("501").Status)
}

func TestRefund_RefusedAddsNote(t *testing.T) {
	repo := newFakeRepo(paidOrder("501"))
	proc := &fakeProcessor{reply: &gateway.Reply{Type: "invalid", ErrorText: "Refund window closed"}}
	svc := newPayments(repo, proc, testDirectory(false))

	res, err := svc.Refund(context.Background(), RefundRequest{OrderID: "501"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Refund window closed", res.Message)
	o := repo.order("501")
	assert.Equal(t, domain.OrderCompleted, o.Status)
	assert.Contains(t, o.Notes[0].Content, "Refund failed")
}

func TestRefund_Validation(t *testing.T) {
	svc := newPayments(newFakeRepo(pendingOrder("501"), paidOrder("502")), &fakeProcessor{}, testDirectory(false))
	var bad ErrBadRequest

	_, err := svc.Refund(context.Background(), RefundRequest{OrderID: "501"})
	assert.True(t, errors.As(err, &bad), "no transaction id")

	_, err = svc.Refund(context.Background(), RefundRequest{OrderID: "502", Amount: decimal.RequireFromString("100.01")})
	assert.True(t, errors.As(err, &bad), "amount above total")

	_, err = svc.Refund(context.Background(), RefundRequest{OrderID: "404"})
	var nf ErrNotFound
	assert.True(t, errors.As(err, &nf))
}
