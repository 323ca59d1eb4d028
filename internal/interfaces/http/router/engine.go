package router

import (
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/logger"
	"github.com/erp/setoff/internal/interfaces/http/handler"
	"github.com/erp/setoff/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers mounted by NewEngine
type Handlers struct {
	Setoff      *handler.SetoffHandler
	SourceLines *handler.SourceLineHandler
	Prepayments *handler.PrepaymentHandler
	Ledger      *handler.LedgerHandler
	Tax         *handler.TaxHandler
	System      *handler.SystemHandler
}

// EngineConfig carries what the middleware chain needs
type EngineConfig struct {
	ServiceName    string
	MaxBodySize    int64
	Auth           middleware.AuthConfig
	Tracing        bool
	Idempotency    shared.IdempotencyStore // nil disables Idempotency-Key handling
	IdempotencyTTL time.Duration
	Logger         *zap.Logger
}

// NewEngine builds the gin engine with the middleware chain and every route
// of the service mounted under /api/v1
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID(), logger.Recovery(cfg.Logger))
	if cfg.Tracing {
		engine.Use(middleware.Tracing(cfg.ServiceName))
	}
	engine.Use(logger.GinMiddleware(cfg.Logger), middleware.BodyLimit(cfg.MaxBodySize))

	engine.GET("/health", h.System.Health)

	if len(cfg.Auth.SkipPaths) == 0 {
		cfg.Auth.SkipPaths = []string{"/health"}
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = cfg.Logger
	}
	engine.Use(middleware.Auth(cfg.Auth))
	if cfg.Tracing {
		engine.Use(middleware.SpanEnricher())
	}

	create := []gin.HandlerFunc{h.Setoff.Create}
	if cfg.Idempotency != nil {
		create = append([]gin.HandlerFunc{middleware.IdempotencyKey(cfg.Idempotency, cfg.IdempotencyTTL, cfg.Logger)}, create...)
	}

	documents := NewDomainGroup("setoff", "/setoff-documents").
		POST("", create...).
		GET("", h.Setoff.List).
		GET("/:id", h.Setoff.Get).
		POST("/:id/void", h.Setoff.Void)

	lines := NewDomainGroup("source-lines", "/source-lines").
		POST("", h.SourceLines.Register).
		GET("/outstanding", h.SourceLines.ListOutstanding).
		GET("/:kind/:id/outstanding", h.SourceLines.Outstanding)

	prepayments := NewDomainGroup("prepayments", "/prepayments").
		POST("", h.Prepayments.Create).
		GET("", h.Prepayments.List).
		GET("/:id", h.Prepayments.Get).
		GET("/:id/verify", h.Prepayments.Verify).
		POST("/:id/usages", h.Prepayments.ApplyUsage)

	usages := NewDomainGroup("prepayment-usages", "/prepayment-usages").
		POST("/:id/reverse", h.Prepayments.ReverseUsage)

	ledger := NewDomainGroup("ledger", "/ledger")
	ledger.Group("entries", "/entries").
		POST("", h.Ledger.Record).
		POST("/:id/reverse", h.Ledger.Reverse).
		GET("/:id/reversal", h.Ledger.GetReversal)
	ledger.Group("accounts", "/accounts/:kind/:id").
		GET("/balance", h.Ledger.Balance).
		GET("/entries", h.Ledger.Entries).
		GET("/verify", h.Ledger.Verify).
		POST("/statements", h.Ledger.ExportStatement)

	tax := NewDomainGroup("tax", "/tax").
		POST("/calculate", h.Tax.Calculate)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo)

	NewRouter(engine, WithAPIVersion("v1")).
		Register(documents).
		Register(lines).
		Register(prepayments).
		Register(usages).
		Register(ledger).
		Register(tax).
		Register(system).
		Setup()

	return engine
}
