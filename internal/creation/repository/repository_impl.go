package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/mirage-studio/mirage/internal/creation/domain"
	"github.com/mirage-studio/mirage/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, creation *domain.Creation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Creation, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	DeleteVotes(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	DeleteFavorites(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, sort string, page pagination.Pagination) ([]domain.Creation, error)
	Count(ctx context.Context, db *gorm.DB, filter domain.ListFilter) (int64, error)
	ListByParent(ctx context.Context, db *gorm.DB, ownerID string, parentID snowflake.ID) ([]domain.Creation, error)
	ListOrphanVideos(ctx context.Context, db *gorm.DB) ([]domain.Creation, error)
	FindSourceImage(ctx context.Context, db *gorm.DB, video *domain.Creation) (*domain.Creation, error)
	SetParentImage(ctx context.Context, db *gorm.DB, videoID, parentID snowflake.ID) error
	ListAll(ctx context.Context, db *gorm.DB) ([]domain.Creation, error)
	UpdateArtifactURLs(ctx context.Context, db *gorm.DB, id snowflake.ID, artifactURL, sourceURL string) error
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, creation *domain.Creation) error {
	return db.WithContext(ctx).Create(creation).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Creation, error) {
	var creation domain.Creation
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&creation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &creation, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&domain.Creation{}, "id = ?", id).Error
}

func (r *repo) DeleteVotes(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM votes WHERE creation_id = ?`, id).Error
}

func (r *repo) DeleteFavorites(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM favorites WHERE creation_id = ?`, id).Error
}

func applyFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	stmt = stmt.Where("model <> ''")
	switch {
	case filter.OwnerID != "" && filter.OwnerEmail != "":
		stmt = stmt.Where("owner_id = ? OR owner_email = ?", filter.OwnerID, filter.OwnerEmail)
	case filter.OwnerID != "":
		stmt = stmt.Where("owner_id = ?", filter.OwnerID)
	case filter.OwnerEmail != "":
		stmt = stmt.Where("owner_email = ?", filter.OwnerEmail)
	}
	if filter.Model != "" {
		stmt = stmt.Where("model = ?", filter.Model)
	}
	if filter.ModelSearch != "" {
		stmt = stmt.Where("LOWER(model) LIKE ?", "%"+filter.ModelSearch+"%")
	}
	if filter.Kind != "" && filter.Kind != "all" {
		stmt = stmt.Where("kind = ?", filter.Kind)
	}
	return stmt
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, sort string, page pagination.Pagination) ([]domain.Creation, error) {
	var creations []domain.Creation
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Creation{}), filter)

	switch sort {
	case domain.SortNew:
		stmt = stmt.Order("created_at DESC")
	default:
		stmt = stmt.Order("vote_score DESC, created_at DESC")
	}

	err := page.Apply(stmt).Find(&creations).Error
	if err != nil {
		return nil, err
	}
	return creations, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, filter domain.ListFilter) (int64, error) {
	var total int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.Creation{}), filter).Count(&total).Error
	return total, err
}

func (r *repo) ListByParent(ctx context.Context, db *gorm.DB, ownerID string, parentID snowflake.ID) ([]domain.Creation, error) {
	var creations []domain.Creation
	err := db.WithContext(ctx).
		Where("kind = ? AND parent_image_id = ? AND owner_id = ?", domain.KindVideo, parentID, ownerID).
		Order("vote_score DESC, created_at DESC").
		Find(&creations).Error
	if err != nil {
		return nil, err
	}
	return creations, nil
}

func (r *repo) ListOrphanVideos(ctx context.Context, db *gorm.DB) ([]domain.Creation, error) {
	var creations []domain.Creation
	err := db.WithContext(ctx).
		Where("kind = ? AND parent_image_id IS NULL", domain.KindVideo).
		Find(&creations).Error
	if err != nil {
		return nil, err
	}
	return creations, nil
}

// FindSourceImage locates the most plausible parent image for an unlinked
// video: same subject, same original image when known, created before the
// video when possible.
func (r *repo) FindSourceImage(ctx context.Context, db *gorm.DB, video *domain.Creation) (*domain.Creation, error) {
	stmt := db.WithContext(ctx).
		Where("kind = ? AND model = ?", domain.KindImage, video.Model)
	if video.SourceURL != "" {
		stmt = stmt.Where("source_url = ?", video.SourceURL)
	}

	var image domain.Creation
	err := stmt.Session(&gorm.Session{}).
		Where("created_at <= ?", video.CreatedAt).
		Order("created_at DESC").
		Take(&image).Error
	if err == nil {
		return &image, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	// No image predates the video; settle for any matching image.
	err = stmt.Order("created_at DESC").Take(&image).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &image, nil
}

func (r *repo) SetParentImage(ctx context.Context, db *gorm.DB, videoID, parentID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE creations SET parent_image_id = ? WHERE id = ?`,
		parentID,
		videoID,
	).Error
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]domain.Creation, error) {
	var creations []domain.Creation
	err := db.WithContext(ctx).Find(&creations).Error
	if err != nil {
		return nil, err
	}
	return creations, nil
}

func (r *repo) UpdateArtifactURLs(ctx context.Context, db *gorm.DB, id snowflake.ID, artifactURL, sourceURL string) error {
	updates := map[string]any{}
	if artifactURL != "" {
		updates["artifact_url"] = artifactURL
	}
	if sourceURL != "" {
		updates["source_url"] = sourceURL
	}
	if len(updates) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Creation{}).
		Where("id = ?", id).
		Updates(updates).Error
}
