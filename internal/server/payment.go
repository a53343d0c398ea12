package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/mirage-studio/mirage/internal/payment/domain"
)

const headerWebhookSignature = "X-CC-Webhook-Signature"

type createChargeRequest struct {
	PackageID string `json:"packageId"`
}

func (s *Server) CreateCharge(c *gin.Context) {
	identity := currentIdentity(c)

	var req createChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.CreateCharge(c.Request.Context(), paymentdomain.Identity{
		ID:    identity.ID,
		Email: identity.Email,
	}, strings.TrimSpace(req.PackageID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"checkoutUrl": result.CheckoutURL,
		"chargeId":    result.ChargeID,
	})
}

// PaymentWebhook verifies the raw body signature before any parsing, so
// the body is read here instead of bound.
func (s *Server) PaymentWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	signature := c.GetHeader(headerWebhookSignature)
	if err := s.paymentSvc.IngestWebhook(c.Request.Context(), rawBody, signature); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
