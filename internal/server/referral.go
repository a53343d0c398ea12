package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type referralActionRequest struct {
	Action       string `json:"action"`
	ReferralCode string `json:"referralCode"`
}

func (s *Server) GetReferralSummary(c *gin.Context) {
	identity := currentIdentity(c)

	summary, err := s.referralSvc.Summary(c.Request.Context(), identity.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"referralCode":    summary.ReferralCode,
		"stats":           summary.Stats,
		"rewards":         summary.Rewards,
		"recentReferrals": summary.RecentReferrals,
	})
}

// ReferralAction handles click tracking (anonymous) and referral
// completion (authenticated).
func (s *Server) ReferralAction(c *gin.Context) {
	var req referralActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	code := strings.TrimSpace(req.ReferralCode)
	switch req.Action {
	case "click":
		if err := s.referralSvc.TrackClick(c.Request.Context(), code); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})

	case "complete":
		identity := currentIdentity(c)
		if identity.ID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		result, err := s.referralSvc.Complete(c.Request.Context(), identity.ID, code)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"creditsAwarded": result.CreditsAwarded,
			"message":        result.Message,
		})

	default:
		AbortWithError(c, newValidationError("action", "invalid_action", "invalid action"))
	}
}
