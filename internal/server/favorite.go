package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mirage-studio/mirage/pkg/db/pagination"
)

type toggleFavoriteRequest struct {
	CreationID string `json:"creationId"`
}

func (s *Server) ToggleFavorite(c *gin.Context) {
	identity := currentIdentity(c)

	var req toggleFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.favoriteSvc.Toggle(c.Request.Context(), identity.ID, strings.TrimSpace(req.CreationID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "favorited": result.Favorited})
}

func (s *Server) ListFavorites(c *gin.Context) {
	identity := currentIdentity(c)

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.favoriteSvc.List(c.Request.Context(), identity.ID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"favorites":  result.Items,
		"pagination": result.PageInfo,
	})
}
