package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	storagedomain "github.com/mirage-studio/mirage/internal/storage/domain"
)

// MigrateMedia rewrites provider-hosted artifact URLs into object storage.
// Safe to run repeatedly; expired URLs stay as they are.
func (s *Server) MigrateMedia(c *gin.Context) {
	if !s.storageSvc.Configured() {
		AbortWithError(c, storagedomain.ErrNotConfigured)
		return
	}

	report, err := s.creationSvc.MigrateEphemeralMedia(c.Request.Context(),
		func(ctx context.Context, url, kind string) (string, error) {
			prefix, contentType := "images", "image/jpeg"
			if kind == creationdomain.KindVideo {
				prefix, contentType = "videos", "video/mp4"
			}
			moved := s.storageSvc.EnsureURL(ctx, url, prefix, contentType)
			return moved, nil
		})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "results": report})
}

func (s *Server) LinkVideos(c *gin.Context) {
	report, err := s.creationSvc.LinkOrphanVideos(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "results": report})
}
