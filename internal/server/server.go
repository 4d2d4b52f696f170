package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/checkout"
	checkoutdomain "github.com/edusocial/edusocial/internal/checkout/domain"
	"github.com/edusocial/edusocial/internal/config"
	"github.com/edusocial/edusocial/internal/credit"
	creditdomain "github.com/edusocial/edusocial/internal/credit/domain"
	"github.com/edusocial/edusocial/internal/engagement"
	engagementdomain "github.com/edusocial/edusocial/internal/engagement/domain"
	"github.com/edusocial/edusocial/internal/invoice"
	invoicedomain "github.com/edusocial/edusocial/internal/invoice/domain"
	"github.com/edusocial/edusocial/internal/metrics"
	"github.com/edusocial/edusocial/internal/moderation"
	moderationdomain "github.com/edusocial/edusocial/internal/moderation/domain"
	"github.com/edusocial/edusocial/internal/order"
	orderdomain "github.com/edusocial/edusocial/internal/order/domain"
	"github.com/edusocial/edusocial/internal/payment"
	paymentdomain "github.com/edusocial/edusocial/internal/payment/domain"
	"github.com/edusocial/edusocial/internal/redislock"
	"github.com/edusocial/edusocial/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	metrics.Module,
	redislock.Module,
	order.Module,
	credit.Module,
	invoice.Module,
	payment.Module,
	moderation.Module,
	engagement.Module,
	checkout.Module,
	scheduler.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	genID         *snowflake.Node
	orderSvc      orderdomain.Service
	creditSvc     creditdomain.Service
	invoiceSvc    invoicedomain.Service
	paymentSvc    paymentdomain.Service
	moderationSvc moderationdomain.Service
	engagementSvc engagementdomain.Service
	checkoutSvc   checkoutdomain.Service
	scheduler     *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	GenID         *snowflake.Node
	OrderSvc      orderdomain.Service
	CreditSvc     creditdomain.Service
	InvoiceSvc    invoicedomain.Service
	PaymentSvc    paymentdomain.Service
	ModerationSvc moderationdomain.Service
	EngagementSvc engagementdomain.Service
	CheckoutSvc   checkoutdomain.Service
	Scheduler     *scheduler.Scheduler `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		genID:         p.GenID,
		orderSvc:      p.OrderSvc,
		creditSvc:     p.CreditSvc,
		invoiceSvc:    p.InvoiceSvc,
		paymentSvc:    p.PaymentSvc,
		moderationSvc: p.ModerationSvc,
		engagementSvc: p.EngagementSvc,
		checkoutSvc:   p.CheckoutSvc,
		scheduler:     p.Scheduler,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		authed := api.Group("", s.requireAccount())
		authed.POST("/checkout", s.startCheckout)
		authed.GET("/orders", s.listOrders)
		authed.GET("/orders/:id", s.getOrder)
		authed.GET("/orders/:id/invoice", s.getInvoice)
		authed.GET("/orders/:id/invoice/document", s.getInvoiceDocument)
		authed.GET("/credits/balance", s.getCreditBalance)
		authed.GET("/credits/transactions", s.listCreditTransactions)
		authed.POST("/credits/debit", s.debitCredits)
		authed.POST("/engagement", s.recordEngagement)
		authed.GET("/engagement/trending", s.listTrending)
		authed.POST("/moderation/jobs", s.enqueueModeration)

		api.POST("/payments/webhooks/:provider", s.handlePaymentWebhook)
		api.POST("/moderation/callback", s.handleModerationCallback)
	}

	internal := s.engine.Group("/internal", s.requireSchedulerSecret())
	{
		internal.POST("/flush", s.triggerFlush)
	}
}
