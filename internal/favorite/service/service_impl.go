package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mirage-studio/mirage/internal/favorite/domain"
	"github.com/mirage-studio/mirage/internal/favorite/repository"
	"github.com/mirage-studio/mirage/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  repository.Repository
}

type favoriteService struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository
}

func New(p Params) domain.Service {
	return &favoriteService{
		db:    p.DB,
		log:   p.Log.Named("favorite"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *favoriteService) Toggle(ctx context.Context, userID, creationID string) (domain.ToggleResult, error) {
	id, err := snowflake.ParseString(creationID)
	if err != nil || id == 0 {
		return domain.ToggleResult{}, domain.ErrInvalidCreation
	}

	var out domain.ToggleResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.CreationExists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrCreationNotFound
		}

		existing, err := s.repo.Find(ctx, tx, id, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := s.repo.Delete(ctx, tx, existing.ID); err != nil {
				return err
			}
			out = domain.ToggleResult{Favorited: false}
			return nil
		}

		f := &domain.Favorite{
			ID:         s.genID.Generate(),
			CreationID: id,
			UserID:     userID,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.repo.Insert(ctx, tx, f); err != nil {
			return err
		}
		out = domain.ToggleResult{Favorited: true}
		return nil
	})
	if err != nil {
		return domain.ToggleResult{}, err
	}
	return out, nil
}

func (s *favoriteService) IsFavorited(ctx context.Context, userID, creationID string) (bool, error) {
	id, err := snowflake.ParseString(creationID)
	if err != nil || id == 0 {
		return false, domain.ErrInvalidCreation
	}
	f, err := s.repo.Find(ctx, s.db, id, userID)
	if err != nil {
		return false, err
	}
	return f != nil, nil
}

func (s *favoriteService) List(ctx context.Context, userID string, page pagination.Pagination) (domain.ListResult, error) {
	page = page.Normalize()
	items, total, err := s.repo.ListCreations(ctx, s.db, userID, page)
	if err != nil {
		return domain.ListResult{}, err
	}
	return domain.ListResult{
		Items:    items,
		PageInfo: pagination.BuildPageInfo(page, total),
	}, nil
}
