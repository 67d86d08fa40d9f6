package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"autoparts-checkout/internal/checkout"
	"autoparts-checkout/internal/logging"
	"autoparts-checkout/internal/metrics"
)

const sessionKey = "checkout.session"

type StorefrontConfig struct {
	AllowedOrigins []string
	CookieName     string
	CookieSecure   bool
	SessionTTL     time.Duration
}

type Storefront struct {
	checkout *checkout.Coordinator
	cfg      StorefrontConfig
	log      logrus.FieldLogger
}

func NewStorefront(coord *checkout.Coordinator, cfg StorefrontConfig, log logrus.FieldLogger) *Storefront {
	if cfg.CookieName == "" {
		cfg.CookieName = "checkout_session"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}
	return &Storefront{checkout: coord, cfg: cfg, log: log}
}

func (s *Storefront) RegisterRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(s.log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "up"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	g := r.Group("/checkout", s.session)
	g.GET("/summary", s.summaryHandler)
	g.GET("/:view", s.viewHandler)
	g.POST("/shipping", s.shippingHandler)
	g.POST("/coupon", s.couponHandler)
	g.DELETE("/coupon", s.clearCouponHandler)
	g.POST("/payment", s.paymentHandler)
	g.POST("/payment/verify", s.verifyHandler)
	g.POST("/confirm", s.confirmHandler)

	return r
}

// session attaches the browser's checkout session, issuing a cookie on
// first contact. The bearer token, when present, is forwarded upstream.
func (s *Storefront) session(c *gin.Context) {
	id, err := c.Cookie(s.cfg.CookieName)
	if err != nil || uuid.Validate(id) != nil {
		id = uuid.NewString()
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.CookieName, id, int(s.cfg.SessionTTL.Seconds()), "/", "", s.cfg.CookieSecure, true)

	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	c.Set(sessionKey, checkout.Session{ID: id, Token: token})
	c.Next()
}

func sessionOf(c *gin.Context) checkout.Session {
	return c.MustGet(sessionKey).(checkout.Session)
}

func (s *Storefront) viewHandler(c *gin.Context) {
	v, ok := checkout.ParseView(c.Param("view"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown checkout view"})
		return
	}
	d, err := s.checkout.Enter(c.Request.Context(), sessionOf(c), v)
	if err != nil {
		writeError(c, err)
		return
	}
	if !d.Allowed() {
		redirect(c, d.Redirect)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": d.View, "state": d.State})
}

func (s *Storefront) summaryHandler(c *gin.Context) {
	q, err := s.checkout.Quote(c.Request.Context(), sessionOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Storefront) shippingHandler(c *gin.Context) {
	var form checkout.ShippingForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	next, err := s.checkout.SubmitShipping(c.Request.Context(), sessionOf(c), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next": viewPath(next)})
}

type couponRequest struct {
	Code string `json:"code" binding:"required"`
}

func (s *Storefront) couponHandler(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Coupon code is required"})
		return
	}
	cp, err := s.checkout.PreviewCoupon(c.Request.Context(), sessionOf(c), req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupon": cp})
}

func (s *Storefront) clearCouponHandler(c *gin.Context) {
	if err := s.checkout.ClearCoupon(c.Request.Context(), sessionOf(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type paymentRequest struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

func (s *Storefront) paymentHandler(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	intent, err := s.checkout.InitiatePayment(c.Request.Context(), sessionOf(c), req.Method)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (s *Storefront) verifyHandler(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	next, err := s.checkout.CompletePayment(c.Request.Context(), sessionOf(c), req.Reference, req.Method)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next": viewPath(next)})
}

func (s *Storefront) confirmHandler(c *gin.Context) {
	order, err := s.checkout.Confirm(c.Request.Context(), sessionOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "next": viewPath(checkout.ViewSuccess)})
}
