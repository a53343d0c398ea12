package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity headers are set by the auth proxy in front of this service.
const (
	HeaderUserID     = "X-User-ID"
	HeaderUserName   = "X-User-Name"
	HeaderUserEmail  = "X-User-Email"
	HeaderUserAvatar = "X-User-Avatar"

	contextIdentityKey = "identity"
)

type Identity struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

func identityFromHeaders(c *gin.Context) Identity {
	return Identity{
		ID:        strings.TrimSpace(c.GetHeader(HeaderUserID)),
		Name:      strings.TrimSpace(c.GetHeader(HeaderUserName)),
		Email:     strings.TrimSpace(c.GetHeader(HeaderUserEmail)),
		AvatarURL: strings.TrimSpace(c.GetHeader(HeaderUserAvatar)),
	}
}

func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFromHeaders(c)
		if identity.ID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(contextIdentityKey, identity)
		c.Next()
	}
}

// currentIdentity returns the caller's identity; the zero value means the
// request is anonymous.
func currentIdentity(c *gin.Context) Identity {
	if v, ok := c.Get(contextIdentityKey); ok {
		if identity, ok := v.(Identity); ok {
			return identity
		}
	}
	return identityFromHeaders(c)
}
