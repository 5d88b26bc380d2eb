package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/billdesk/internal/auth"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/config"
	"github.com/smallbiznis/billdesk/internal/customer"
	customerdomain "github.com/smallbiznis/billdesk/internal/customer/domain"
	"github.com/smallbiznis/billdesk/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/billdesk/internal/dashboard/domain"
	"github.com/smallbiznis/billdesk/internal/invoice"
	invoicedomain "github.com/smallbiznis/billdesk/internal/invoice/domain"
	"github.com/smallbiznis/billdesk/internal/item"
	itemdomain "github.com/smallbiznis/billdesk/internal/item/domain"
	"github.com/smallbiznis/billdesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/billdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/billdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/billdesk/internal/observability/tracing"
	"github.com/smallbiznis/billdesk/internal/organization"
	organizationdomain "github.com/smallbiznis/billdesk/internal/organization/domain"
	"github.com/smallbiznis/billdesk/internal/payment"
	paymentdomain "github.com/smallbiznis/billdesk/internal/payment/domain"
	"github.com/smallbiznis/billdesk/internal/providers/pdf"
	"github.com/smallbiznis/billdesk/internal/quote"
	quotedomain "github.com/smallbiznis/billdesk/internal/quote/domain"
	"github.com/smallbiznis/billdesk/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	auth.Module,
	organization.Module,
	customer.Module,
	item.Module,
	pdf.Module,
	invoice.Module,
	payment.Module,
	quote.Module,
	dashboard.Module,
	ratelimit.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	registerValidatorTagNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
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
	engine          *gin.Engine
	cfg             config.Config
	tokens          *auth.TokenManager
	authzSvc        authorization.Service
	organizationSvc organizationdomain.Service
	customerSvc     customerdomain.Service
	itemSvc         itemdomain.Service
	invoiceSvc      invoicedomain.Service
	paymentSvc      paymentdomain.Service
	quoteSvc        quotedomain.Service
	dashboardSvc    dashboarddomain.Service
	writeLimiter    WriteLimiter
	obsMetrics      *obsmetrics.Metrics
}

// WriteLimiter gates mutating requests per organization.
type WriteLimiter interface {
	Enabled() bool
	Allow(ctx context.Context, orgID string) (*ratelimit.Decision, error)
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Tokens          *auth.TokenManager
	AuthzSvc        authorization.Service
	OrganizationSvc organizationdomain.Service
	CustomerSvc     customerdomain.Service
	ItemSvc         itemdomain.Service
	InvoiceSvc      invoicedomain.Service
	PaymentSvc      paymentdomain.Service
	QuoteSvc        quotedomain.Service
	DashboardSvc    dashboarddomain.Service
	WriteLimiter    *ratelimit.WriteLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		tokens:          p.Tokens,
		authzSvc:        p.AuthzSvc,
		organizationSvc: p.OrganizationSvc,
		customerSvc:     p.CustomerSvc,
		itemSvc:         p.ItemSvc,
		invoiceSvc:      p.InvoiceSvc,
		paymentSvc:      p.PaymentSvc,
		quoteSvc:        p.QuoteSvc,
		dashboardSvc:    p.DashboardSvc,
		obsMetrics:      p.ObsMetrics,
	}
	if p.WriteLimiter != nil {
		svc.writeLimiter = p.WriteLimiter
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.Use(s.AuthRequired())
	api.Use(s.WriteRateLimit())

	api.GET("/me", s.Me)

	// -------- Organization --------
	api.GET("/organization", s.requirePermission(authorization.OrganizationView), s.GetOrganization)
	api.PATCH("/organization", s.requirePermission(authorization.OrganizationUpdate), s.UpdateOrganization)

	// -------- Customers --------
	api.POST("/customers", s.requirePermission(authorization.CustomerCreate), s.CreateCustomer)
	api.GET("/customers", s.requirePermission(authorization.CustomerView), s.ListCustomers)
	api.GET("/customers/:id", s.requirePermission(authorization.CustomerView), s.GetCustomerByID)
	api.PATCH("/customers/:id", s.requirePermission(authorization.CustomerUpdate), s.UpdateCustomer)
	api.DELETE("/customers/:id", s.requirePermission(authorization.CustomerDelete), s.DeleteCustomer)

	// -------- Items --------
	api.POST("/items", s.requirePermission(authorization.ItemCreate), s.CreateItem)
	api.GET("/items", s.requirePermission(authorization.ItemView), s.ListItems)
	api.GET("/items/:id", s.requirePermission(authorization.ItemView), s.GetItemByID)
	api.PATCH("/items/:id", s.requirePermission(authorization.ItemUpdate), s.UpdateItem)
	api.DELETE("/items/:id", s.requirePermission(authorization.ItemDelete), s.DeleteItem)

	// -------- Invoices --------
	api.POST("/invoices", s.requirePermission(authorization.InvoiceCreate), s.CreateInvoice)
	api.GET("/invoices", s.requirePermission(authorization.InvoiceView), s.ListInvoices)
	api.GET("/invoices/:id", s.requirePermission(authorization.InvoiceView), s.GetInvoiceByID)
	api.PATCH("/invoices/:id", s.requirePermission(authorization.InvoiceUpdate), s.UpdateInvoice)
	api.PATCH("/invoices/:id/status", s.requirePermission(authorization.InvoiceUpdate), s.UpdateInvoiceStatus)
	api.DELETE("/invoices/:id", s.requirePermission(authorization.InvoiceDelete), s.DeleteInvoice)
	api.GET("/invoices/:id/pdf", s.requirePermission(authorization.InvoiceView), s.RenderInvoicePDF)

	// -------- Payments --------
	api.POST("/invoices/:id/payments", s.requirePermission(authorization.PaymentCreate), s.RecordPayment)
	api.GET("/invoices/:id/payments", s.requirePermission(authorization.PaymentView), s.ListInvoicePayments)
	api.DELETE("/payments/:id", s.requirePermission(authorization.PaymentDelete), s.DeletePayment)

	// -------- Quotes --------
	// Ownership of update and delete is checked by the quote service.
	api.POST("/quotes", s.requirePermission(authorization.QuoteCreate), s.CreateQuote)
	api.GET("/quotes", s.requirePermission(authorization.QuoteView), s.ListQuotes)
	api.GET("/quotes/:id", s.requirePermission(authorization.QuoteView), s.GetQuoteByID)
	api.PATCH("/quotes/:id", s.requirePermission(authorization.QuoteUpdate), s.UpdateQuote)
	api.DELETE("/quotes/:id", s.requirePermission(authorization.QuoteDelete), s.DeleteQuote)
	api.GET("/quotes/:id/pdf", s.requirePermission(authorization.QuoteView), s.RenderQuotePDF)

	// -------- Dashboard --------
	api.GET("/dashboard/summary", s.requirePermission(authorization.ReportView), s.GetDashboardSummary)
	api.GET("/dashboard/revenue", s.requirePermission(authorization.ReportView), s.GetDashboardRevenue)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
