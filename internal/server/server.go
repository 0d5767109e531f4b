package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"key2pay-backend/internal/gateway"
	"key2pay-backend/internal/logging"
	"key2pay-backend/internal/usecase"
)

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Orders    *usecase.OrderService
	Payments  *usecase.PaymentService
	Reconcile *usecase.ReconcileService
	Auth      *usecase.AdminAuthService
	Gateways  *gateway.Directory
	Log       *zap.Logger
}

type Server struct {
	deps   Deps
	log    *zap.Logger
	router *gin.Engine
}

func New(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		log:    logging.OrNop(deps.Log),
		router: gin.New(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(gin.Recovery(), requestID(), s.accessLog(), cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/wc-api/:gateway", s.handleWebhook)
	r.GET("/checkout/order-received/:orderId", s.handleReturn)

	api := r.Group("/api")
	{
		api.GET("/gateways", s.handleGateways)
		api.POST("/orders/:orderId/pay", s.handlePay)
	}

	admin := api.Group("/admin", s.adminOnly())
	{
		admin.POST("/orders", s.handleCreateOrder)
		admin.GET("/orders", s.handleListOrders)
		admin.GET("/orders/:orderId", s.handleGetOrder)
		admin.POST("/orders/:orderId/refund", s.handleRefund)
	}
}
