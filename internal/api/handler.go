package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"transaction-service/internal/models"
	"transaction-service/internal/service"
	"transaction-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactionService is the orchestrator surface exposed over HTTP
type TransactionService interface {
	Preview(ctx context.Context, prescriptionID string) *models.PreviewResult
	Commit(ctx context.Context, req *service.CommitRequest) *models.CommitResult
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
	RecentTransactions(ctx context.Context, limit int) ([]models.TransactionRecord, error)
	Discrepancies(ctx context.Context, limit int) ([]models.Discrepancy, error)
}

// ReadyCheck reports whether a dependency is usable
type ReadyCheck func(ctx context.Context) error

// Options configures authentication and throttling of the API
type Options struct {
	JWTSecret          string
	AuthRequired       bool
	CommitRoles        []string
	AdminRoles         []string
	AllowOrigins       []string
	RateLimitPerSecond int
	RateLimitBurst     int
	ReadyChecks        map[string]ReadyCheck
}

// Handler contains HTTP handlers
type Handler struct {
	svc    TransactionService
	opts   Options
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc TransactionService, opts Options) *Handler {
	return &Handler{
		svc:    svc,
		opts:   opts,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))
	router.Use(corsMiddleware(h.opts.AllowOrigins))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware([]byte(h.opts.JWTSecret), h.opts.AuthRequired))
	if h.opts.RateLimitPerSecond > 0 {
		v1.Use(NewRateLimiter(h.opts.RateLimitPerSecond, h.opts.RateLimitBurst).Middleware())
	}
	{
		v1.POST("/transactions/preview", h.previewTransaction)
		v1.POST("/transactions", requireRole(h.opts.AuthRequired, h.opts.CommitRoles), h.createTransaction)
		v1.GET("/transactions", h.listTransactions)
		v1.GET("/dashboard/stats", h.dashboardStats)
		v1.GET("/discrepancies", requireRole(h.opts.AuthRequired, h.opts.AdminRoles), h.listDiscrepancies)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// readinessCheck reports 503 when any dependency is unusable
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failing := gin.H{}
	for name, check := range h.opts.ReadyChecks {
		if err := check(ctx); err != nil {
			failing[name] = err.Error()
		}
	}

	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"failing": failing,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type previewRequest struct {
	PrescriptionID string `json:"prescription_id" binding:"required"`
}

// previewTransaction prices a prescription without side effects. Domain
// failures are reported in the body with status 200.
func (h *Handler) previewTransaction(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, h.svc.Preview(c.Request.Context(), req.PrescriptionID))
}

// createTransaction handles a paid commit
func (h *Handler) createTransaction(c *gin.Context) {
	var req service.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.PaymentAmount.LessThan(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "payment_amount must not be negative",
		})
		return
	}

	if id, ok := util.IdentityFrom(c.Request.Context()); ok {
		req.UserID = id.UserID
	}

	c.JSON(http.StatusOK, h.svc.Commit(c.Request.Context(), &req))
}

// listTransactions returns recent ledger rows
func (h *Handler) listTransactions(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	records, err := h.svc.RecentTransactions(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "Failed to list transactions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": records})
}

// dashboardStats returns the ledger summary
func (h *Handler) dashboardStats(c *gin.Context) {
	stats, err := h.svc.DashboardStats(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to load dashboard stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// listDiscrepancies returns orphaned deduction reports
func (h *Handler) listDiscrepancies(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	out, err := h.svc.Discrepancies(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "Failed to list discrepancies", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"discrepancies": out})
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return 0, false
	}
	return limit, true
}
