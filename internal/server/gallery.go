package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	gallerydomain "github.com/mirage-studio/mirage/internal/gallery/domain"
	"github.com/mirage-studio/mirage/pkg/db/pagination"
)

func (s *Server) Gallery(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Model       string `form:"model"`
		ModelSearch string `form:"modelSearch"`
		Type        string `form:"type"`
		Owner       string `form:"owner"`
		Sort        string `form:"sort,default=top"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	viewer := currentIdentity(c)
	filter := creationdomain.ListFilter{
		Model:       strings.TrimSpace(query.Model),
		ModelSearch: strings.TrimSpace(query.ModelSearch),
		Kind:        strings.TrimSpace(query.Type),
	}
	// "mine" narrows the feed to the viewer's own creations. Rows written
	// under an email-only identity still match through the email key.
	if query.Owner == "mine" && viewer.ID != "" {
		filter.OwnerID = viewer.ID
		filter.OwnerEmail = strings.TrimSpace(viewer.Email)
	}

	result, err := s.gallerySvc.Query(c.Request.Context(), viewer.ID, gallerydomain.QueryRequest{
		Filter: filter,
		Sort:   query.Sort,
		Page:   query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"creations":  result.Items,
		"pagination": result.PageInfo,
	})
}

func (s *Server) ListModels(c *gin.Context) {
	identity := currentIdentity(c)
	search := strings.TrimSpace(c.Query("search"))

	groups, err := s.gallerySvc.ListModels(c.Request.Context(), identity.ID, search)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "models": groups})
}
