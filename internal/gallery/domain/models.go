package domain

import (
	"context"
	"time"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	"github.com/mirage-studio/mirage/pkg/db/pagination"
)

// Item is a creation annotated with the viewer's own vote. Other users'
// vote identities are never exposed through the feed.
type Item struct {
	creationdomain.Creation
	UserVote string `json:"userVote"`
}

type QueryRequest struct {
	Filter creationdomain.ListFilter
	Sort   string
	Page   pagination.Pagination
}

type QueryResult struct {
	Items    []Item              `json:"creations"`
	PageInfo pagination.PageInfo `json:"pagination"`
}

// ModelGroup summarizes the viewer's creations for one subject label.
type ModelGroup struct {
	Name       string    `json:"name"`
	Count      int64     `json:"count"`
	Thumbnail  string    `json:"thumbnail"`
	LatestDate time.Time `json:"latestDate"`
}

type Service interface {
	// Query lists creations for the feed, each annotated with the viewer's
	// vote state (up, down or none).
	Query(ctx context.Context, viewerID string, req QueryRequest) (QueryResult, error)
	// ListModels groups the viewer's own creations by subject label. The
	// thumbnail prefers the highest-scored image item and falls back to the
	// first item of any kind. Groups are ordered by count desc then recency.
	ListModels(ctx context.Context, viewerID, search string) ([]ModelGroup, error)
}
