package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"key2pay-backend/internal/domain"
	"key2pay-backend/internal/gateway"
	"key2pay-backend/internal/usecase"
)

const maxWebhookBody = 1 << 20

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, usecase.Ack{Message: "Invalid webhook data received."})
		return
	}
	ack, err := s.deps.Reconcile.HandleWebhook(c.Request.Context(), c.Param("gateway"), body)
	c.JSON(webhookStatus(err), ack)
}

type returnPageResp struct {
	OrderID string             `json:"orderId"`
	Status  domain.OrderStatus `json:"status"`
	Message string             `json:"message"`
}

func (s *Server) handleReturn(c *gin.Context) {
	page, err := s.deps.Reconcile.HandleReturn(c.Request.Context(), c.Param("orderId"), c.Request.URL.Query())
	if err != nil {
		s.fail(c, err)
		return
	}
	if page.Redirect {
		c.Redirect(http.StatusFound, s.deps.Payments.ReturnURL(page.Order.OrderID))
		return
	}
	c.JSON(http.StatusOK, returnPageResp{
		OrderID: page.Order.OrderID,
		Status:  page.Order.Status,
		Message: page.Message,
	})
}

type gatewayResp struct {
	ID     string                  `json:"id"`
	Title  string                  `json:"title"`
	Type   string                  `json:"type"`
	Fields []gateway.CheckoutField `json:"fields"`
}

func (s *Server) handleGateways(c *gin.Context) {
	currency := c.Query("currency")
	out := make([]gatewayResp, 0)
	for _, in := range s.deps.Gateways.Enabled() {
		if !in.Settings.Configured() {
			continue
		}
		if currency != "" && !in.Available(currency) {
			continue
		}
		out = append(out, gatewayResp{
			ID:     in.ID,
			Title:  in.Title,
			Type:   in.Method.PaymentMethodType(),
			Fields: in.Method.ExtraCheckoutFields(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"gateways": out})
}

type payReq struct {
	Gateway string            `json:"gateway"`
	Fields  map[string]string `json:"fields"`
}

func (s *Server) handlePay(c *gin.Context) {
	var req payReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	if req.Gateway == "" {
		s.abort(c, http.StatusBadRequest, "BadRequest", "gateway required")
		return
	}
	res, err := s.deps.Payments.Initiate(c.Request.Context(), usecase.InitiateRequest{
		OrderID:    c.Param("orderId"),
		GatewayID:  req.Gateway,
		CustomerIP: c.ClientIP(),
		Fields:     req.Fields,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success", "redirect": res.Redirect})
}
