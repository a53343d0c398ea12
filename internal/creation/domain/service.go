package domain

import (
	"context"
	"errors"

	"github.com/mirage-studio/mirage/pkg/db/pagination"
)

const (
	SortTop = "top"
	SortNew = "new"
)

type CreateRequest struct {
	Kind          string
	ArtifactURL   string
	SourceURL     string
	Prompt        string
	Model         string
	ParentImageID string
	VideoChain    []string
	Owner         Owner
}

type ListFilter struct {
	OwnerID     string
	OwnerEmail  string
	Model       string
	ModelSearch string
	Kind        string
}

type ListRequest struct {
	Filter ListFilter
	Sort   string
	Page   pagination.Pagination
}

// LinkReport summarizes an orphan-video backfill run.
type LinkReport struct {
	Total    int `json:"totalVideos"`
	Linked   int `json:"linked"`
	Unlinked int `json:"unlinked"`
}

// MigrateReport summarizes an ephemeral-media relocation run.
type MigrateReport struct {
	Total    int `json:"total"`
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// RelocateFunc copies an ephemeral artifact into durable storage and
// returns the new URL.
type RelocateFunc func(ctx context.Context, url, kind string) (string, error)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Creation, error)
	GetByID(ctx context.Context, id string) (Creation, error)
	// Delete removes the creation for any caller; an ownership mismatch is
	// logged, not rejected. Vote and favorite rows cascade best-effort.
	Delete(ctx context.Context, id string, requester Owner) error
	List(ctx context.Context, req ListRequest) ([]Creation, int64, error)
	// VideosForImage returns the viewer's videos derived from the given
	// image creation, best first.
	VideosForImage(ctx context.Context, ownerID, imageID string) ([]Creation, error)
	// LinkOrphanVideos backfills ParentImageID for videos saved before
	// lineage tracking existed.
	LinkOrphanVideos(ctx context.Context) (LinkReport, error)
	// MigrateEphemeralMedia rewrites provider-hosted artifact URLs to
	// durable ones using relocate. Expired URLs are counted as failed and
	// left in place.
	MigrateEphemeralMedia(ctx context.Context, relocate RelocateFunc) (MigrateReport, error)
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidArtifactURL = errors.New("invalid_artifact_url")
	ErrInvalidModel       = errors.New("invalid_model")
	ErrInvalidKind        = errors.New("invalid_kind")
	ErrNotFound           = errors.New("not_found")
)
