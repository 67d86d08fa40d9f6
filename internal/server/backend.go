package server

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"autoparts-checkout/internal/database"
	"autoparts-checkout/internal/domain"
	"autoparts-checkout/internal/infrastructure/payment"
	"autoparts-checkout/internal/logging"
	"autoparts-checkout/internal/metrics"
	"autoparts-checkout/internal/service"
	"autoparts-checkout/internal/submission"
)

const maxWebhookBody = 1 << 20

type BackendConfig struct {
	AllowedOrigins []string
	WebhookSecret  string
	// APITokens, when set, are the only bearer tokens /order/create accepts.
	APITokens []string
}

type Backend struct {
	orders  service.OrderService
	db      database.Service
	cfg     BackendConfig
	metrics *metrics.Backend
	log     logrus.FieldLogger
}

func NewBackend(orders service.OrderService, db database.Service, cfg BackendConfig, m *metrics.Backend, log logrus.FieldLogger) *Backend {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}
	return &Backend{orders: orders, db: db, cfg: cfg, metrics: m, log: log}
}

func (s *Backend) RegisterRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(s.log), s.instrument)
	r.Use(cors.New(cors.Config{
		AllowOrigins:  s.cfg.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", submission.IdempotencyHeader},
		ExposeHeaders: []string{"X-Idempotency-Write"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.POST("/order/create", s.authorize, s.createOrderHandler)
	r.POST("/webhooks/paystack", s.webhookHandler)
	r.POST("/custom-orders", s.customOrderHandler)

	return r
}

func (s *Backend) instrument(c *gin.Context) {
	start := time.Now()
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	s.metrics.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	s.metrics.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
}

func (s *Backend) authorize(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
		return
	}
	if len(s.cfg.APITokens) == 0 {
		c.Next()
		return
	}
	for _, t := range s.cfg.APITokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			c.Next()
			return
		}
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid bearer token"})
}

func (s *Backend) healthHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
		return
	}
	stats := s.db.Health(c.Request.Context())
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func (s *Backend) createOrderHandler(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader(submission.IdempotencyHeader))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": submission.IdempotencyHeader + " header is required"})
		return
	}
	var req domain.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.PaymentReference != key {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": submission.IdempotencyHeader + " must equal payment_reference"})
		return
	}

	order, created, err := s.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	if !created {
		s.metrics.OrderReplays.Inc()
		c.Header("X-Idempotency-Write", "false")
		c.JSON(http.StatusOK, order.Response())
		return
	}
	c.Header("X-Idempotency-Write", "true")
	c.JSON(http.StatusCreated, order.Response())
}

func (s *Backend) webhookHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}
	if !payment.VerifySignature(s.cfg.WebhookSecret, body, c.GetHeader(payment.SignatureHeader)) {
		s.metrics.WebhookEvents.WithLabelValues("", "unauthorized").Inc()
		s.log.WithError(domain.ErrUnauthorized).Warn("webhook rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	ev, err := payment.ParseEvent(body)
	if err == nil {
		err = s.orders.ApplyWebhookEvent(c.Request.Context(), ev)
	}
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues(string(ev.Type()), "error").Inc()
		s.log.WithError(err).WithField("event", ev.Event).Error("webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.metrics.WebhookEvents.WithLabelValues(string(ev.Type()), "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Backend) customOrderHandler(c *gin.Context) {
	var o domain.CustomOrder
	if err := c.ShouldBindJSON(&o); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if missing := o.MissingFields(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": missing})
		return
	}

	err := s.orders.CreateCustomOrder(c.Request.Context(), &o)
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": verr.Fields})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Custom order received", "order": o})
}
