package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mirage-studio/mirage/internal/config"
	creditdomain "github.com/mirage-studio/mirage/internal/credit/domain"
	creditrepo "github.com/mirage-studio/mirage/internal/credit/repository"
	creditservice "github.com/mirage-studio/mirage/internal/credit/service"
	"github.com/mirage-studio/mirage/internal/payment/commerce"
	"github.com/mirage-studio/mirage/internal/payment/domain"
	"github.com/mirage-studio/mirage/internal/payment/repository"
)

const testWebhookSecret = "whsec-test"

type paymentFixture struct {
	svc     domain.Service
	credits creditdomain.Service
	db      *gorm.DB
	node    *snowflake.Node
}

func setupPayments(t *testing.T, commerceURL string) paymentFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&creditdomain.User{}, &creditdomain.Transaction{}, &domain.Order{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	cfg := config.Config{
		BaseURL: "https://mirage.example.com",
		Commerce: config.CommerceConfig{
			APIKey:        "cc-key",
			BaseURL:       commerceURL,
			WebhookSecret: testWebhookSecret,
		},
	}

	credits := creditservice.New(creditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  creditrepo.Provide(),
	})
	svc := New(Params{
		Config:   cfg,
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Commerce: commerce.New(cfg, zap.NewNop()),
		Credits:  credits,
	})
	return paymentFixture{svc: svc, credits: credits, db: db, node: node}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func confirmedEvent(orderID snowflake.ID, userID string, credits int64) []byte {
	return []byte(fmt.Sprintf(
		`{"event":{"type":"charge:confirmed","data":{"id":"ch_1","metadata":{"orderId":"%s","userId":"%s","packageId":"starter","credits":"%d"}}}}`,
		orderID, userID, credits,
	))
}

func (f paymentFixture) pendingOrder(t *testing.T, userID string) *domain.Order {
	t.Helper()

	result, err := f.svc.CreateCharge(context.Background(), domain.Identity{ID: userID, Email: userID + "@example.com"}, "starter")
	assert.NoError(t, err)
	assert.NotEmpty(t, result.CheckoutURL)

	var order domain.Order
	assert.NoError(t, f.db.Where("user_id = ?", userID).Order("created_at DESC").First(&order).Error)
	return &order
}

func commerceStub(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/charges", r.URL.Path)
		assert.Equal(t, "cc-key", r.Header.Get("X-CC-Api-Key"))

		var req commerce.ChargeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fixed_price", req.PricingType)
		assert.Equal(t, "5", req.LocalPrice.Amount)
		assert.NotEmpty(t, req.Metadata["orderId"])

		_, _ = fmt.Fprint(w, `{"data":{"id":"ch_1","code":"CODE1","hosted_url":"https://commerce.example.com/pay/CODE1"}}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCreateCharge(t *testing.T) {
	server := commerceStub(t)
	f := setupPayments(t, server.URL)

	result, err := f.svc.CreateCharge(context.Background(), domain.Identity{ID: "user-1"}, "starter")
	assert.NoError(t, err)
	assert.Equal(t, "https://commerce.example.com/pay/CODE1", result.CheckoutURL)
	assert.Equal(t, "ch_1", result.ChargeID)

	var order domain.Order
	assert.NoError(t, f.db.First(&order).Error)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, int64(25), order.Credits)
	assert.Equal(t, "ch_1", order.ChargeID)
	assert.Equal(t, "CODE1", order.ChargeCode)
}

func TestCreateChargeRejectsUnknownPackage(t *testing.T) {
	f := setupPayments(t, "http://unused.invalid")

	_, err := f.svc.CreateCharge(context.Background(), domain.Identity{ID: "user-1"}, "mega")
	assert.ErrorIs(t, err, domain.ErrInvalidPackage)
}

func TestCreateChargeRequiresConfiguration(t *testing.T) {
	f := setupPayments(t, "http://unused.invalid")
	unconfigured := New(Params{
		Config:   config.Config{},
		DB:       f.db,
		Log:      zap.NewNop(),
		GenID:    f.node,
		Repo:     repository.Provide(),
		Commerce: commerce.New(config.Config{}, zap.NewNop()),
		Credits:  f.credits,
	})

	_, err := unconfigured.CreateCharge(context.Background(), domain.Identity{ID: "user-1"}, "starter")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestWebhookSignature(t *testing.T) {
	f := setupPayments(t, "http://unused.invalid")
	body := []byte(`{"event":{"type":"charge:created","data":{}}}`)

	assert.ErrorIs(t, f.svc.IngestWebhook(context.Background(), body, "deadbeef"), domain.ErrInvalidSignature)
	assert.ErrorIs(t, f.svc.IngestWebhook(context.Background(), body, ""), domain.ErrInvalidSignature)
	assert.NoError(t, f.svc.IngestWebhook(context.Background(), body, sign(body)))
}

func TestWebhookConfirmedCreditsOnce(t *testing.T) {
	server := commerceStub(t)
	f := setupPayments(t, server.URL)
	ctx := context.Background()

	_, err := f.credits.GetOrCreate(ctx, creditdomain.Identity{ID: "user-1"})
	assert.NoError(t, err)
	order := f.pendingOrder(t, "user-1")

	body := confirmedEvent(order.ID, "user-1", 25)
	assert.NoError(t, f.svc.IngestWebhook(ctx, body, sign(body)))

	balance, err := f.credits.Balance(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, creditdomain.DefaultCredits+25, balance)

	var settled domain.Order
	assert.NoError(t, f.db.First(&settled, order.ID).Error)
	assert.Equal(t, domain.StatusCompleted, settled.Status)
	assert.NotNil(t, settled.CompletedAt)

	// Redelivery must not double-credit.
	assert.NoError(t, f.svc.IngestWebhook(ctx, body, sign(body)))
	balance, err = f.credits.Balance(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, creditdomain.DefaultCredits+25, balance)
}

func TestWebhookConfirmedSingleConnection(t *testing.T) {
	server := commerceStub(t)
	f := setupPayments(t, server.URL)
	ctx := context.Background()

	// Pin the pool to one connection: the settle transaction and the credit
	// grant must share it rather than each taking their own.
	sqlDB, err := f.db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	order := f.pendingOrder(t, "user-solo")
	body := confirmedEvent(order.ID, "user-solo", 25)
	assert.NoError(t, f.svc.IngestWebhook(ctx, body, sign(body)))

	balance, err := f.credits.Balance(ctx, "user-solo")
	assert.NoError(t, err)
	assert.Equal(t, creditdomain.DefaultCredits+25, balance)

	var settled domain.Order
	assert.NoError(t, f.db.First(&settled, order.ID).Error)
	assert.Equal(t, domain.StatusCompleted, settled.Status)

	var recorded creditdomain.Transaction
	assert.NoError(t, f.db.Where("user_id = ?", "user-solo").First(&recorded).Error)
	assert.Equal(t, creditdomain.TransactionTypePurchase, recorded.Type)
	assert.Equal(t, int64(25), recorded.Amount)
}

func TestWebhookConfirmedValidation(t *testing.T) {
	f := setupPayments(t, "http://unused.invalid")
	ctx := context.Background()

	missing := []byte(`{"event":{"type":"charge:confirmed","data":{"metadata":{"userId":"user-1"}}}}`)
	assert.ErrorIs(t, f.svc.IngestWebhook(ctx, missing, sign(missing)), domain.ErrMissingMetadata)

	unknown := confirmedEvent(f.node.Generate(), "user-1", 25)
	assert.ErrorIs(t, f.svc.IngestWebhook(ctx, unknown, sign(unknown)), domain.ErrOrderNotFound)
}

func TestWebhookFailedClosesPendingOnly(t *testing.T) {
	server := commerceStub(t)
	f := setupPayments(t, server.URL)
	ctx := context.Background()

	_, err := f.credits.GetOrCreate(ctx, creditdomain.Identity{ID: "user-1"})
	assert.NoError(t, err)
	order := f.pendingOrder(t, "user-1")

	failed := []byte(fmt.Sprintf(
		`{"event":{"type":"charge:failed","data":{"metadata":{"orderId":"%s"}}}}`, order.ID))
	assert.NoError(t, f.svc.IngestWebhook(ctx, failed, sign(failed)))

	var closed domain.Order
	assert.NoError(t, f.db.First(&closed, order.ID).Error)
	assert.Equal(t, domain.StatusFailed, closed.Status)

	// Settle a fresh order, then a late expiry must not downgrade it.
	order = f.pendingOrder(t, "user-1")
	confirmed := confirmedEvent(order.ID, "user-1", 25)
	assert.NoError(t, f.svc.IngestWebhook(ctx, confirmed, sign(confirmed)))

	expired := []byte(fmt.Sprintf(
		`{"event":{"type":"charge:expired","data":{"metadata":{"orderId":"%s"}}}}`, order.ID))
	assert.NoError(t, f.svc.IngestWebhook(ctx, expired, sign(expired)))

	var settled domain.Order
	assert.NoError(t, f.db.First(&settled, order.ID).Error)
	assert.Equal(t, domain.StatusCompleted, settled.Status)
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	f := setupPayments(t, "http://unused.invalid")
	body := []byte(`{"event":{"type":"charge:created","data":{}}}`)
	assert.NoError(t, f.svc.IngestWebhook(context.Background(), body, sign(body)))
}
