package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	creditdomain "github.com/mirage-studio/mirage/internal/credit/domain"
	generationdomain "github.com/mirage-studio/mirage/internal/generation/domain"
)

type generateRequest struct {
	ReferenceImages []string `json:"referenceImages"`
	Prompt          string   `json:"prompt"`
	Mode            string   `json:"mode"`
	NumFrames       int      `json:"numFrames"`
}

// Generate debits the caller and runs the full submit-poll-store cycle
// inside the request. The response can take minutes for video.
func (s *Server) Generate(c *gin.Context) {
	identity := currentIdentity(c)

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = generationdomain.ModeImage
	}

	ctx := c.Request.Context()
	if _, err := s.creditSvc.GetOrCreate(ctx, creditdomain.Identity{
		ID:        identity.ID,
		Name:      identity.Name,
		Email:     identity.Email,
		AvatarURL: identity.AvatarURL,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	// Debit up front. A later provider failure does not refund; the cost of
	// a failed attempt stays on the caller.
	remaining, err := s.creditSvc.Debit(ctx, identity.ID, mode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.generationSvc.Generate(ctx, generationdomain.Request{
		UserID:          identity.ID,
		ReferenceImages: req.ReferenceImages,
		Prompt:          req.Prompt,
		Mode:            mode,
		NumFrames:       req.NumFrames,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"output":  result.Output,
		"credits": remaining,
	})
}
