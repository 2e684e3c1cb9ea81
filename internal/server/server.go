package server

import (
	"context"
	"net/http"

	"github.com/goddeus/caixa-premiada-sub004/internal/auth"
	"github.com/goddeus/caixa-premiada-sub004/internal/catalog"
	"github.com/goddeus/caixa-premiada-sub004/internal/config"
	"github.com/goddeus/caixa-premiada-sub004/internal/notify"
	"github.com/goddeus/caixa-premiada-sub004/internal/purchase"
	"github.com/goddeus/caixa-premiada-sub004/internal/user"
	"github.com/goddeus/caixa-premiada-sub004/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	config *config.Config
	http   *http.Server
}

func New(db *sqlx.DB, rdb *redis.Client, cfg *config.Config, notifier *notify.Service) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	catalogService := catalog.NewService(catalog.NewRepository(db), rdb, cfg.CatalogCacheTTL)
	purchaseService := purchase.NewService(
		db,
		purchase.NewRepository(db),
		wallet.NewRepository(db),
		catalogService,
		nil, // default fixed-odds pool policy
		nil, // default crypto-seeded source
		notifier,
		purchase.Config{
			MaxBasketLines: cfg.MaxBasketLines,
			MaxQtyPerLine:  cfg.MaxQtyPerLine,
			TxTimeout:      cfg.PurchaseTxTimeout,
		},
	)

	userHandler := user.NewHandler(db, cfg.JWTSecret, cfg.JWTRefreshSecret)
	catalogHandler := catalog.NewHandler(db, catalogService)
	walletHandler := wallet.NewHandler(db)
	purchaseHandler := purchase.NewHandler(purchaseService)

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.Refresh)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)
		protected.POST("/me/mode", userHandler.SwitchMode)
		protected.DELETE("/me", userHandler.Deactivate)
		protected.GET("/me/balance", walletHandler.GetBalance)

		protected.GET("/boxes", catalogHandler.ListBoxes)
		protected.GET("/boxes/:boxID", catalogHandler.GetBox)

		protected.POST("/purchases", purchaseHandler.Create)
		protected.GET("/purchases", purchaseHandler.List)
		protected.GET("/purchases/:purchaseID", purchaseHandler.Get)

		protected.GET("/transactions", walletHandler.GetTransactions)
		protected.POST("/wallet/deposit", walletHandler.Deposit)
		protected.POST("/wallet/withdraw", walletHandler.Withdraw)
	}

	adminMiddleware := auth.RequireRole("admin")
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.POST("/boxes", catalogHandler.CreateBox)
		admin.PUT("/boxes/:boxID", catalogHandler.UpdateBox)
		admin.POST("/boxes/:boxID/prizes", catalogHandler.CreatePrize)
		admin.POST("/boxes/:boxID/cache/invalidate", catalogHandler.InvalidateCache)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())

	return &Server{
		router: router,
		db:     db,
		config: cfg,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
// Purchase transactions already hold their own timeout; the drain
// window only needs to outlast it.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Session-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
