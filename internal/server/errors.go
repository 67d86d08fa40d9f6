package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoparts-checkout/internal/checkout"
	"autoparts-checkout/internal/domain"
)

// viewPath is where the storefront serves view v.
func viewPath(v checkout.View) string {
	return "/checkout/" + string(v)
}

func redirect(c *gin.Context, v checkout.View) {
	c.Header("Location", viewPath(v))
	c.JSON(http.StatusSeeOther, gin.H{"redirect": viewPath(v)})
}

// writeError maps a failed operation to its response. Guard violations are
// redirects, not failures.
func writeError(c *gin.Context, err error) {
	c.Error(err)

	var (
		gv   *checkout.GuardViolation
		verr *domain.ValidationError
		te   *domain.TransportError
	)
	switch {
	case errors.As(err, &gv):
		redirect(c, gv.Redirect)
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Validation failed", "fields": verr.Fields})
	case errors.Is(err, domain.ErrPaymentFailed):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment was declined"})
	case errors.Is(err, domain.ErrAmountMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": "Paid amount does not match the order total"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.As(err, &te):
		c.JSON(http.StatusBadGateway, gin.H{"error": te.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
