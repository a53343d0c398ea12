package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mirage-studio/mirage/internal/config"
	creditdomain "github.com/mirage-studio/mirage/internal/credit/domain"
	"github.com/mirage-studio/mirage/internal/payment/commerce"
	"github.com/mirage-studio/mirage/internal/payment/domain"
	"github.com/mirage-studio/mirage/internal/payment/repository"
)

type Params struct {
	fx.In

	Config   config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     repository.Repository
	Commerce *commerce.Client
	Credits  creditdomain.Service
}

type paymentService struct {
	cfg      config.Config
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     repository.Repository
	commerce *commerce.Client
	credits  creditdomain.Service
}

func New(p Params) domain.Service {
	return &paymentService{
		cfg:      p.Config,
		db:       p.DB,
		log:      p.Log.Named("payment"),
		genID:    p.GenID,
		repo:     p.Repo,
		commerce: p.Commerce,
		credits:  p.Credits,
	}
}

func (s *paymentService) CreateCharge(ctx context.Context, buyer domain.Identity, packageID string) (domain.ChargeResult, error) {
	pkg, ok := creditdomain.PackageByID(packageID)
	if !ok {
		return domain.ChargeResult{}, domain.ErrInvalidPackage
	}
	if !s.commerce.Configured() {
		return domain.ChargeResult{}, domain.ErrNotConfigured
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:        s.genID.Generate(),
		UserID:    buyer.ID,
		UserEmail: buyer.Email,
		PackageID: pkg.ID,
		Credits:   pkg.Credits,
		Amount:    pkg.Price,
		Currency:  "USD",
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		return domain.ChargeResult{}, err
	}

	charge, err := s.commerce.CreateCharge(ctx, commerce.ChargeRequest{
		Name:        fmt.Sprintf("%d Mirage Credits", pkg.Credits),
		Description: fmt.Sprintf("Purchase %d credits for Mirage", pkg.Credits),
		PricingType: "fixed_price",
		LocalPrice: commerce.LocalPrice{
			Amount:   strconv.FormatInt(pkg.Price, 10),
			Currency: "USD",
		},
		Metadata: map[string]string{
			"orderId":   order.ID.String(),
			"userId":    buyer.ID,
			"packageId": pkg.ID,
			"credits":   strconv.FormatInt(pkg.Credits, 10),
		},
		RedirectURL: s.cfg.BaseURL + "?payment=success",
		CancelURL:   s.cfg.BaseURL + "?payment=cancelled",
	})
	if err != nil {
		s.log.Error("create charge", zap.String("order_id", order.ID.String()), zap.Error(err))
		return domain.ChargeResult{}, domain.ErrChargeFailed
	}

	if err := s.repo.SetCharge(ctx, s.db, order.ID, charge.ID, charge.Code); err != nil {
		s.log.Warn("record charge id", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
	return domain.ChargeResult{CheckoutURL: charge.HostedURL, ChargeID: charge.ID}, nil
}

func (s *paymentService) IngestWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if secret := s.commerce.WebhookSecret(); secret != "" {
		if !verifySignature(rawBody, signature, secret) {
			return domain.ErrInvalidSignature
		}
	}

	var envelope struct {
		Event struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		} `json:"event"`
	}
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return fmt.Errorf("decode webhook: %w", err)
	}

	eventType := envelope.Event.Type
	var payload struct {
		Metadata map[string]string `json:"metadata"`
	}
	_ = json.Unmarshal(envelope.Event.Data, &payload)

	s.log.Info("webhook event", zap.String("type", eventType))

	switch eventType {
	case "charge:confirmed", "charge:resolved":
		return s.settleOrder(ctx, payload.Metadata, envelope.Event.Data)
	case "charge:failed", "charge:expired":
		status := domain.StatusFailed
		if eventType == "charge:expired" {
			status = domain.StatusExpired
		}
		return s.closeOrder(ctx, payload.Metadata, status)
	default:
		return nil
	}
}

func (s *paymentService) settleOrder(ctx context.Context, metadata map[string]string, chargeData json.RawMessage) error {
	orderID := metadata["orderId"]
	userID := metadata["userId"]
	creditsRaw := metadata["credits"]
	if orderID == "" || userID == "" || creditsRaw == "" {
		return domain.ErrMissingMetadata
	}
	id, err := snowflake.ParseString(orderID)
	if err != nil {
		return domain.ErrMissingMetadata
	}
	credits, err := strconv.ParseInt(creditsRaw, 10, 64)
	if err != nil || credits <= 0 {
		return domain.ErrMissingMetadata
	}

	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if order.Status == domain.StatusCompleted {
		s.log.Info("order already completed", zap.String("order_id", orderID))
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err := s.repo.MarkCompleted(ctx, tx, id, append([]byte(nil), chargeData...))
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		_, err = s.credits.CreditTx(ctx, tx, userID, credits,
			creditdomain.TransactionTypePurchase,
			fmt.Sprintf("purchase of %s package", order.PackageID))
		if err != nil {
			return err
		}
		s.log.Info("credits purchased",
			zap.String("user_id", userID),
			zap.Int64("credits", credits),
			zap.String("order_id", orderID))
		return nil
	})
}

func (s *paymentService) closeOrder(ctx context.Context, metadata map[string]string, status string) error {
	orderID := metadata["orderId"]
	if orderID == "" {
		return nil
	}
	id, err := snowflake.ParseString(orderID)
	if err != nil {
		return nil
	}
	return s.repo.MarkClosed(ctx, s.db, id, status)
}

func verifySignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.TrimSpace(signature)), []byte(expected))
}
