package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
)

type saveCreationRequest struct {
	OriginalImage  string   `json:"originalImage"`
	GeneratedImage string   `json:"generatedImage"`
	Prompt         string   `json:"prompt"`
	Model          string   `json:"model"`
	Type           string   `json:"type"`
	SourceImageID  string   `json:"sourceImageId"`
	VideoChain     []string `json:"videoChain"`
}

func (s *Server) SaveCreation(c *gin.Context) {
	identity := currentIdentity(c)

	var req saveCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	creation, err := s.creationSvc.Create(c.Request.Context(), creationdomain.CreateRequest{
		Kind:          strings.TrimSpace(req.Type),
		ArtifactURL:   strings.TrimSpace(req.GeneratedImage),
		SourceURL:     s.resolveSourceURL(c.Request.Context(), req.OriginalImage),
		Prompt:        req.Prompt,
		Model:         strings.TrimSpace(req.Model),
		ParentImageID: strings.TrimSpace(req.SourceImageID),
		VideoChain:    req.VideoChain,
		Owner: creationdomain.Owner{
			ID:        identity.ID,
			Name:      identity.Name,
			Email:     identity.Email,
			AvatarURL: identity.AvatarURL,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "creation": creation})
}

// resolveSourceURL keeps http(s) source images as-is and relocates base64
// payloads into object storage. Raw base64 never reaches the database: when
// storage is unconfigured or the upload fails the source is dropped.
func (s *Server) resolveSourceURL(ctx context.Context, raw string) string {
	src := strings.TrimSpace(raw)
	if src == "" || strings.HasPrefix(src, "http") {
		return src
	}
	if !s.storageSvc.Configured() || !strings.HasPrefix(src, "data:") {
		return ""
	}
	contentType := s.storageSvc.ContentTypeFor(src, "image")
	key := s.storageSvc.GenerateKey("originals", "jpg")
	uploaded, err := s.storageSvc.Upload(ctx, src, key, contentType)
	if err != nil {
		return ""
	}
	return uploaded
}

func (s *Server) DeleteCreation(c *gin.Context) {
	identity := currentIdentity(c)
	id := strings.TrimSpace(c.Param("id"))

	err := s.creationSvc.Delete(c.Request.Context(), id, creationdomain.Owner{
		ID:    identity.ID,
		Email: identity.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) ListVideosForImage(c *gin.Context) {
	identity := currentIdentity(c)
	id := strings.TrimSpace(c.Param("id"))

	videos, err := s.creationSvc.VideosForImage(c.Request.Context(), identity.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "videos": videos})
}
