package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mirage-studio/mirage/internal/credit/domain"
	"github.com/mirage-studio/mirage/internal/credit/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  repository.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("credit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) GetOrCreate(ctx context.Context, identity domain.Identity) (domain.User, error) {
	id := strings.TrimSpace(identity.ID)
	if id == "" {
		return domain.User{}, domain.ErrInvalidUser
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:        id,
		Name:      identity.Name,
		Email:     identity.Email,
		AvatarURL: identity.AvatarURL,
		Credits:   domain.DefaultCredits,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.EnsureUser(ctx, s.db, &user); err != nil {
		return domain.User{}, err
	}

	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if existing == nil {
		return domain.User{}, domain.ErrInvalidUser
	}
	return *existing, nil
}

func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	user, err := s.GetOrCreate(ctx, domain.Identity{ID: userID})
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

func (s *Service) HasSufficient(ctx context.Context, userID, kind string) (bool, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= domain.CostFor(kind), nil
}

func (s *Service) Debit(ctx context.Context, userID, kind string) (int64, error) {
	if _, err := s.GetOrCreate(ctx, domain.Identity{ID: userID}); err != nil {
		return 0, err
	}

	cost := domain.CostFor(kind)
	debited, err := s.repo.DebitIfSufficient(ctx, s.db, userID, cost)
	if err != nil {
		return 0, err
	}
	if !debited {
		return 0, domain.ErrInsufficientCredits
	}

	s.recordTransaction(ctx, s.db, userID, domain.TransactionTypeDebit, -cost, kind+" generation")

	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, domain.ErrInvalidUser
	}
	return user.Credits, nil
}

func (s *Service) Credit(ctx context.Context, userID string, amount int64, txType, description string) (int64, error) {
	return s.CreditTx(ctx, s.db, userID, amount, txType, description)
}

func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, userID string, amount int64, txType, description string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return 0, domain.ErrInvalidUser
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:        id,
		Credits:   domain.DefaultCredits,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.EnsureUser(ctx, tx, &user); err != nil {
		return 0, err
	}

	if err := s.repo.Increment(ctx, tx, id, amount); err != nil {
		return 0, err
	}

	if txType == "" {
		txType = domain.TransactionTypeCredit
	}
	s.recordTransaction(ctx, tx, id, txType, amount, description)

	existing, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		return 0, domain.ErrInvalidUser
	}
	return existing.Credits, nil
}

// recordTransaction is best-effort; the balance mutation is the source of
// truth and a failed log line must not fail the operation.
func (s *Service) recordTransaction(ctx context.Context, db *gorm.DB, userID, txType string, amount int64, description string) {
	tx := domain.Transaction{
		ID:          s.genID.Generate(),
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertTransaction(ctx, db, &tx); err != nil {
		s.log.Warn("record credit transaction failed",
			zap.String("user_id", userID),
			zap.String("type", txType),
			zap.Error(err),
		)
	}
}
