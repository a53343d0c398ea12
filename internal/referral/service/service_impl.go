package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	creditdomain "github.com/mirage-studio/mirage/internal/credit/domain"
	"github.com/mirage-studio/mirage/internal/referral/domain"
	"github.com/mirage-studio/mirage/internal/referral/repository"
	pkgdb "github.com/mirage-studio/mirage/pkg/db"
)

const recentLimit = 5

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    repository.Repository
	Credits creditdomain.Service
}

type referralService struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    repository.Repository
	credits creditdomain.Service
}

func New(p Params) domain.Service {
	return &referralService{
		db:      p.DB,
		log:     p.Log.Named("referral"),
		genID:   p.GenID,
		repo:    p.Repo,
		credits: p.Credits,
	}
}

func (s *referralService) Summary(ctx context.Context, userID string) (domain.Summary, error) {
	user, err := s.credits.GetOrCreate(ctx, creditdomain.Identity{ID: userID})
	if err != nil {
		return domain.Summary{}, err
	}

	code := ""
	if user.ReferralCode != nil {
		code = *user.ReferralCode
	}
	if code == "" {
		code, err = s.mintCode(ctx, userID)
		if err != nil {
			return domain.Summary{}, err
		}
	}

	signups, earned, err := s.repo.Stats(ctx, s.db, userID)
	if err != nil {
		return domain.Summary{}, err
	}
	recent, err := s.repo.Recent(ctx, s.db, userID, recentLimit)
	if err != nil {
		return domain.Summary{}, err
	}

	recents := make([]domain.RecentReferral, 0, len(recent))
	for _, ref := range recent {
		recents = append(recents, domain.RecentReferral{
			Date:    ref.SignedUpAt,
			Credits: ref.CreditsAwarded,
		})
	}

	return domain.Summary{
		ReferralCode: code,
		Stats: domain.Stats{
			Clicks:        user.ReferralClicks,
			Signups:       signups,
			CreditsEarned: earned,
		},
		Rewards: domain.Rewards{
			Referrer: domain.ReferrerReward,
			Referee:  domain.RefereeReward,
		},
		RecentReferrals: recents,
	}, nil
}

func (s *referralService) TrackClick(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.ErrCodeRequired
	}
	owner, err := s.repo.FindUserByCode(ctx, s.db, code)
	if err != nil {
		return err
	}
	if owner == nil {
		return domain.ErrCodeNotFound
	}
	return s.repo.IncrementClicks(ctx, s.db, code)
}

func (s *referralService) Complete(ctx context.Context, userID, code string) (domain.CompleteResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.CompleteResult{Message: "no referral code provided"}, nil
	}

	referrer, err := s.repo.FindUserByCode(ctx, s.db, code)
	if err != nil {
		return domain.CompleteResult{}, err
	}
	if referrer == nil {
		return domain.CompleteResult{Message: "invalid referral code"}, nil
	}
	if referrer.ID == userID {
		return domain.CompleteResult{Message: "cannot use your own referral"}, nil
	}

	existing, err := s.repo.FindByReferee(ctx, s.db, userID)
	if err != nil {
		return domain.CompleteResult{}, err
	}
	if existing != nil {
		return domain.CompleteResult{Message: "already referred"}, nil
	}

	if _, err := s.credits.Credit(ctx, referrer.ID, domain.ReferrerReward,
		creditdomain.TransactionTypeReferral, "referral reward"); err != nil {
		return domain.CompleteResult{}, err
	}
	if _, err := s.credits.Credit(ctx, userID, domain.RefereeReward,
		creditdomain.TransactionTypeReferral, "referral signup bonus"); err != nil {
		return domain.CompleteResult{}, err
	}

	now := time.Now().UTC()
	ref := &domain.Referral{
		ID:             s.genID.Generate(),
		ReferrerID:     referrer.ID,
		RefereeID:      userID,
		ReferralCode:   code,
		CreditsAwarded: domain.ReferrerReward,
		SignedUpAt:     now,
		CreatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, ref); err != nil {
		s.log.Warn("record referral", zap.String("referee_id", userID), zap.Error(err))
	}

	return domain.CompleteResult{
		CreditsAwarded: domain.RefereeReward,
		Message:        fmt.Sprintf("You earned %d bonus credits!", domain.RefereeReward),
	}, nil
}

// mintCode assigns a fresh code to the user, retrying on the unlikely
// collision with another user's code.
func (s *referralService) mintCode(ctx context.Context, userID string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		taken, err := s.repo.FindUserByCode(ctx, s.db, code)
		if err != nil {
			return "", err
		}
		if taken != nil {
			continue
		}
		if err := s.repo.SetCode(ctx, s.db, userID, code); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				continue
			}
			return "", err
		}
		return code, nil
	}
	return "", fmt.Errorf("could not mint referral code")
}

func randomCode() (string, error) {
	out := make([]byte, domain.CodeLength)
	max := big.NewInt(int64(len(domain.CodeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = domain.CodeAlphabet[n.Int64()]
	}
	return string(out), nil
}
