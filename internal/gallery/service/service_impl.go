package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	"github.com/mirage-studio/mirage/internal/gallery/domain"
	"github.com/mirage-studio/mirage/internal/gallery/repository"
	votedomain "github.com/mirage-studio/mirage/internal/vote/domain"
	"github.com/mirage-studio/mirage/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      repository.Repository
	Creations creationdomain.Service
}

type galleryService struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      repository.Repository
	creations creationdomain.Service
}

func New(p Params) domain.Service {
	return &galleryService{
		db:        p.DB,
		log:       p.Log.Named("gallery"),
		repo:      p.Repo,
		creations: p.Creations,
	}
}

func (s *galleryService) Query(ctx context.Context, viewerID string, req domain.QueryRequest) (domain.QueryResult, error) {
	page := req.Page.Normalize()
	items, total, err := s.creations.List(ctx, creationdomain.ListRequest{
		Filter: req.Filter,
		Sort:   req.Sort,
		Page:   page,
	})
	if err != nil {
		return domain.QueryResult{}, err
	}

	ids := make([]snowflake.ID, 0, len(items))
	for _, c := range items {
		ids = append(ids, c.ID)
	}
	votes, err := s.repo.VotesByViewer(ctx, s.db, viewerID, ids)
	if err != nil {
		return domain.QueryResult{}, err
	}

	out := make([]domain.Item, 0, len(items))
	for _, c := range items {
		direction, ok := votes[c.ID]
		if !ok {
			direction = votedomain.DirectionNone
		}
		out = append(out, domain.Item{Creation: c, UserVote: direction})
	}
	return domain.QueryResult{
		Items:    out,
		PageInfo: pagination.BuildPageInfo(page, total),
	}, nil
}

func (s *galleryService) ListModels(ctx context.Context, viewerID, search string) ([]domain.ModelGroup, error) {
	items, err := s.repo.CreationsByOwner(ctx, s.db, viewerID, strings.ToLower(strings.TrimSpace(search)))
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*modelAccum)
	order := make([]string, 0)
	for _, c := range items {
		acc, ok := groups[c.Model]
		if !ok {
			acc = &modelAccum{name: c.Model}
			groups[c.Model] = acc
			order = append(order, c.Model)
		}
		acc.add(c)
	}

	out := make([]domain.ModelGroup, 0, len(order))
	for _, name := range order {
		out = append(out, groups[name].finish())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].LatestDate.After(out[j].LatestDate)
	})
	return out, nil
}

// modelAccum folds one subject's creations into a group. Rows arrive
// best-image-first within the subject, so the first image wins the
// thumbnail; the first row of any kind is the fallback.
type modelAccum struct {
	name      string
	group     domain.ModelGroup
	thumbnail string
	fallback  string
}

func (a *modelAccum) add(c creationdomain.Creation) {
	a.group.Count++
	if c.CreatedAt.After(a.group.LatestDate) {
		a.group.LatestDate = c.CreatedAt
	}
	if a.fallback == "" {
		a.fallback = c.ArtifactURL
	}
	if a.thumbnail == "" && c.Kind != creationdomain.KindVideo {
		a.thumbnail = c.ArtifactURL
	}
}

func (a *modelAccum) finish() domain.ModelGroup {
	a.group.Name = a.name
	a.group.Thumbnail = a.thumbnail
	if a.group.Thumbnail == "" {
		a.group.Thumbnail = a.fallback
	}
	return a.group
}
