package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mirage-studio/mirage/internal/vote/domain"
	"github.com/mirage-studio/mirage/internal/vote/repository"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  repository.Repository
}

type voteService struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository
}

func New(p Params) domain.Service {
	return &voteService{
		db:    p.DB,
		log:   p.Log.Named("vote"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *voteService) Cast(ctx context.Context, userID, creationID, direction string) (domain.Result, error) {
	if direction != domain.DirectionUp && direction != domain.DirectionDown {
		return domain.Result{}, domain.ErrInvalidDirection
	}
	id, err := snowflake.ParseString(creationID)
	if err != nil || id == 0 {
		return domain.Result{}, domain.ErrInvalidCreation
	}

	var out domain.Result
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, ok, err := s.repo.CreationScore(ctx, tx, id); err != nil {
			return err
		} else if !ok {
			return domain.ErrCreationNotFound
		}

		existing, err := s.repo.FindByUser(ctx, tx, id, userID)
		if err != nil {
			return err
		}

		delta, userVote, err := s.transition(ctx, tx, existing, id, userID, direction)
		if err != nil {
			return err
		}
		if delta != 0 {
			if err := s.repo.ApplyScoreDelta(ctx, tx, id, delta); err != nil {
				return err
			}
		}

		score, _, err := s.repo.CreationScore(ctx, tx, id)
		if err != nil {
			return err
		}
		out = domain.Result{VoteScore: score, UserVote: userVote}
		return nil
	})
	if err != nil {
		return domain.Result{}, err
	}
	return out, nil
}

// transition mutates the vote row and reports the score delta plus the
// caller's resulting vote state.
func (s *voteService) transition(ctx context.Context, tx *gorm.DB, existing *domain.Vote, creationID snowflake.ID, userID, direction string) (int64, string, error) {
	weight := int64(1)
	if direction == domain.DirectionDown {
		weight = -1
	}

	switch {
	case existing == nil:
		now := time.Now().UTC()
		v := &domain.Vote{
			ID:         s.genID.Generate(),
			CreationID: creationID,
			UserID:     userID,
			Direction:  direction,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.Insert(ctx, tx, v); err != nil {
			return 0, "", err
		}
		return weight, direction, nil

	case existing.Direction == direction:
		if err := s.repo.Delete(ctx, tx, existing.ID); err != nil {
			return 0, "", err
		}
		return -weight, domain.DirectionNone, nil

	default:
		if err := s.repo.UpdateDirection(ctx, tx, existing.ID, direction); err != nil {
			return 0, "", err
		}
		return 2 * weight, direction, nil
	}
}
