package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	creditdomain "github.com/mirage-studio/mirage/internal/credit/domain"
	creditrepo "github.com/mirage-studio/mirage/internal/credit/repository"
	creditservice "github.com/mirage-studio/mirage/internal/credit/service"
	"github.com/mirage-studio/mirage/internal/referral/domain"
	"github.com/mirage-studio/mirage/internal/referral/repository"
)

type referralFixture struct {
	svc     domain.Service
	credits creditdomain.Service
	db      *gorm.DB
}

func setupReferrals(t *testing.T) referralFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&creditdomain.User{}, &creditdomain.Transaction{}, &domain.Referral{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	credits := creditservice.New(creditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  creditrepo.Provide(),
	})
	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repository.Provide(),
		Credits: credits,
	})
	return referralFixture{svc: svc, credits: credits, db: db}
}

func TestSummaryMintsStableCode(t *testing.T) {
	f := setupReferrals(t)
	ctx := context.Background()

	summary, err := f.svc.Summary(ctx, "user-1")
	assert.NoError(t, err)
	assert.Len(t, summary.ReferralCode, domain.CodeLength)
	for _, c := range summary.ReferralCode {
		assert.Contains(t, domain.CodeAlphabet, string(c))
	}
	assert.Equal(t, domain.ReferrerReward, summary.Rewards.Referrer)
	assert.Equal(t, domain.RefereeReward, summary.Rewards.Referee)

	again, err := f.svc.Summary(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, summary.ReferralCode, again.ReferralCode)
}

func TestTrackClick(t *testing.T) {
	f := setupReferrals(t)
	ctx := context.Background()

	summary, err := f.svc.Summary(ctx, "user-1")
	assert.NoError(t, err)

	assert.NoError(t, f.svc.TrackClick(ctx, summary.ReferralCode))
	assert.NoError(t, f.svc.TrackClick(ctx, " "+summary.ReferralCode+" "))

	again, err := f.svc.Summary(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), again.Stats.Clicks)

	assert.ErrorIs(t, f.svc.TrackClick(ctx, ""), domain.ErrCodeRequired)
	assert.ErrorIs(t, f.svc.TrackClick(ctx, "ZZZZ99"), domain.ErrCodeNotFound)
}

func TestCompleteAwardsBothSides(t *testing.T) {
	f := setupReferrals(t)
	ctx := context.Background()

	summary, err := f.svc.Summary(ctx, "referrer")
	assert.NoError(t, err)

	result, err := f.svc.Complete(ctx, "referee", summary.ReferralCode)
	assert.NoError(t, err)
	assert.Equal(t, domain.RefereeReward, result.CreditsAwarded)

	referrerBalance, err := f.credits.Balance(ctx, "referrer")
	assert.NoError(t, err)
	assert.Equal(t, creditdomain.DefaultCredits+domain.ReferrerReward, referrerBalance)

	refereeBalance, err := f.credits.Balance(ctx, "referee")
	assert.NoError(t, err)
	assert.Equal(t, creditdomain.DefaultCredits+domain.RefereeReward, refereeBalance)

	again, err := f.svc.Summary(ctx, "referrer")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), again.Stats.Signups)
	assert.Equal(t, domain.ReferrerReward, again.Stats.CreditsEarned)
	assert.Len(t, again.RecentReferrals, 1)
}

func TestCompleteNoOps(t *testing.T) {
	f := setupReferrals(t)
	ctx := context.Background()

	summary, err := f.svc.Summary(ctx, "referrer")
	assert.NoError(t, err)

	// Soft failures answer with a message, never an error.
	result, err := f.svc.Complete(ctx, "referee", "")
	assert.NoError(t, err)
	assert.Zero(t, result.CreditsAwarded)

	result, err = f.svc.Complete(ctx, "referee", "NOPE99")
	assert.NoError(t, err)
	assert.Equal(t, "invalid referral code", result.Message)

	result, err = f.svc.Complete(ctx, "referrer", summary.ReferralCode)
	assert.NoError(t, err)
	assert.Equal(t, "cannot use your own referral", result.Message)

	_, err = f.svc.Complete(ctx, "referee", summary.ReferralCode)
	assert.NoError(t, err)
	result, err = f.svc.Complete(ctx, "referee", summary.ReferralCode)
	assert.NoError(t, err)
	assert.Equal(t, "already referred", result.Message)

	// The second attempt must not award again.
	balance, err := f.credits.Balance(ctx, "referee")
	assert.NoError(t, err)
	assert.Equal(t, creditdomain.DefaultCredits+domain.RefereeReward, balance)
}
