package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	creditdomain "github.com/mirage-studio/mirage/internal/credit/domain"
)

func (s *Server) GetCredits(c *gin.Context) {
	identity := currentIdentity(c)

	user, err := s.creditSvc.GetOrCreate(c.Request.Context(), creditdomain.Identity{
		ID:        identity.ID,
		Name:      identity.Name,
		Email:     identity.Email,
		AvatarURL: identity.AvatarURL,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"credits":  user.Credits,
		"costs":    creditdomain.Costs,
		"packages": creditdomain.Packages,
	})
}
