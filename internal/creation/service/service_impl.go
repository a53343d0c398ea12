package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mirage-studio/mirage/internal/creation/domain"
	"github.com/mirage-studio/mirage/internal/creation/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:   p.Log.Named("creation.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Creation, error) {
	artifactURL := strings.TrimSpace(req.ArtifactURL)
	if artifactURL == "" {
		return domain.Creation{}, domain.ErrInvalidArtifactURL
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return domain.Creation{}, domain.ErrInvalidModel
	}

	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		kind = domain.KindImage
	}
	if kind != domain.KindImage && kind != domain.KindVideo {
		return domain.Creation{}, domain.ErrInvalidKind
	}

	now := time.Now().UTC()
	creation := domain.Creation{
		ID:          s.genID.Generate(),
		Kind:        kind,
		ArtifactURL: artifactURL,
		SourceURL:   strings.TrimSpace(req.SourceURL),
		Prompt:      req.Prompt,
		Model:       model,
		VoteScore:   0,
		Owner:       req.Owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Lineage and clip chains only make sense for videos.
	if kind == domain.KindVideo {
		if parent := strings.TrimSpace(req.ParentImageID); parent != "" {
			parentID, err := snowflake.ParseString(parent)
			if err != nil || parentID == 0 {
				return domain.Creation{}, domain.ErrInvalidID
			}
			creation.ParentImageID = &parentID
		}
		if len(req.VideoChain) > 0 {
			chain, err := json.Marshal(req.VideoChain)
			if err != nil {
				return domain.Creation{}, err
			}
			creation.VideoChain = datatypes.JSON(chain)
		}
	}

	if err := s.repo.Insert(ctx, s.db, &creation); err != nil {
		return domain.Creation{}, err
	}
	return creation, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Creation, error) {
	parsed, err := s.parseID(id)
	if err != nil {
		return domain.Creation{}, err
	}
	creation, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return domain.Creation{}, err
	}
	if creation == nil {
		return domain.Creation{}, domain.ErrNotFound
	}
	return *creation, nil
}

func (s *Service) Delete(ctx context.Context, id string, requester domain.Owner) error {
	parsed, err := s.parseID(id)
	if err != nil {
		return err
	}

	creation, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return err
	}
	if creation == nil {
		return domain.ErrNotFound
	}

	// Deletion is permitted regardless of ownership to keep moderation and
	// cleanup possible; a mismatch is only worth a log line.
	if creation.Owner.ID != requester.ID {
		s.log.Info("deleting creation owned by another user",
			zap.String("creation_id", id),
			zap.String("owner_id", creation.Owner.ID),
			zap.String("requester_id", requester.ID),
		)
	}

	if err := s.repo.Delete(ctx, s.db, parsed); err != nil {
		return err
	}

	if err := s.repo.DeleteVotes(ctx, s.db, parsed); err != nil {
		s.log.Warn("vote cascade failed", zap.String("creation_id", id), zap.Error(err))
	}
	if err := s.repo.DeleteFavorites(ctx, s.db, parsed); err != nil {
		s.log.Warn("favorite cascade failed", zap.String("creation_id", id), zap.Error(err))
	}
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Creation, int64, error) {
	filter := req.Filter
	filter.Model = strings.TrimSpace(filter.Model)
	filter.ModelSearch = strings.ToLower(strings.TrimSpace(filter.ModelSearch))
	filter.Kind = strings.TrimSpace(filter.Kind)

	page := req.Page.Normalize()
	items, err := s.repo.List(ctx, s.db, filter, req.Sort, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, s.db, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) VideosForImage(ctx context.Context, ownerID, imageID string) ([]domain.Creation, error) {
	parsed, err := s.parseID(imageID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByParent(ctx, s.db, ownerID, parsed)
}

func (s *Service) LinkOrphanVideos(ctx context.Context) (domain.LinkReport, error) {
	videos, err := s.repo.ListOrphanVideos(ctx, s.db)
	if err != nil {
		return domain.LinkReport{}, err
	}

	report := domain.LinkReport{Total: len(videos)}
	for i := range videos {
		video := &videos[i]
		image, err := s.repo.FindSourceImage(ctx, s.db, video)
		if err != nil {
			return report, err
		}
		if image == nil {
			report.Unlinked++
			s.log.Info("no source image for video",
				zap.String("video_id", video.ID.String()),
				zap.String("model", video.Model),
			)
			continue
		}
		if err := s.repo.SetParentImage(ctx, s.db, video.ID, image.ID); err != nil {
			return report, err
		}
		report.Linked++
	}
	return report, nil
}

func (s *Service) MigrateEphemeralMedia(ctx context.Context, relocate domain.RelocateFunc) (domain.MigrateReport, error) {
	creations, err := s.repo.ListAll(ctx, s.db)
	if err != nil {
		return domain.MigrateReport{}, err
	}

	report := domain.MigrateReport{Total: len(creations)}
	for i := range creations {
		creation := &creations[i]

		artifactURL, artifactMoved := s.relocateOne(ctx, relocate, creation.ArtifactURL, creation.Kind, &report)
		sourceURL, sourceMoved := s.relocateOne(ctx, relocate, creation.SourceURL, domain.KindImage, &report)
		if !artifactMoved && !sourceMoved {
			report.Skipped++
			continue
		}

		if err := s.repo.UpdateArtifactURLs(ctx, s.db, creation.ID, artifactURL, sourceURL); err != nil {
			return report, err
		}
		report.Migrated++
	}
	return report, nil
}

// relocateOne reports whether the URL changed. Failures keep the original
// URL so a later run can retry.
func (s *Service) relocateOne(ctx context.Context, relocate domain.RelocateFunc, url, kind string, report *domain.MigrateReport) (string, bool) {
	if !isEphemeralURL(url) {
		return url, false
	}
	moved, err := relocate(ctx, url, kind)
	if err != nil || moved == "" || moved == url {
		if err != nil {
			s.log.Warn("relocate media failed", zap.String("url", url), zap.Error(err))
		}
		report.Failed++
		return url, false
	}
	return moved, true
}

func isEphemeralURL(url string) bool {
	return strings.Contains(url, "replicate.delivery") || strings.Contains(url, "replicate.com")
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
