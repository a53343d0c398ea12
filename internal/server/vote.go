package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type castVoteRequest struct {
	CreationID string `json:"creationId"`
	VoteType   string `json:"voteType"`
}

func (s *Server) CastVote(c *gin.Context) {
	identity := currentIdentity(c)

	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.voteSvc.Cast(c.Request.Context(), identity.ID,
		strings.TrimSpace(req.CreationID), strings.TrimSpace(req.VoteType))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"voteScore": result.VoteScore,
		"userVote":  result.UserVote,
	})
}
