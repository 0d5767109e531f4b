package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"key2pay-backend/internal/domain"
	"key2pay-backend/internal/usecase"
)

type createOrderReq struct {
	OrderID        string          `json:"orderId"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	BillingEmail   string          `json:"billingEmail"`
	BillingPhone   string          `json:"billingPhone"`
	BillingCountry string          `json:"billingCountry"`
	BillingCity    string          `json:"billingCity"`
	BillingState   string          `json:"billingState"`
	BillingAddress string          `json:"billingAddress"`
	BillingZip     string          `json:"billingZip"`
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	id, err := s.deps.Orders.Create(c.Request.Context(), &domain.Order{
		OrderID:        req.OrderID,
		Total:          req.Total,
		Currency:       req.Currency,
		BillingEmail:   req.BillingEmail,
		BillingPhone:   req.BillingPhone,
		BillingCountry: req.BillingCountry,
		BillingCity:    req.BillingCity,
		BillingState:   req.BillingState,
		BillingAddress: req.BillingAddress,
		BillingZip:     req.BillingZip,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"orderId": id})
}

func (s *Server) handleListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	items, total, err := s.deps.Orders.List(c.Request.Context(), page, size)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page})
}

func (s *Server) handleGetOrder(c *gin.Context) {
	o, err := s.deps.Orders.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type refundReq struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (s *Server) handleRefund(c *gin.Context) {
	var req refundReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.abort(c, http.StatusBadRequest, "BadRequest", "invalid json")
			return
		}
	}
	res, err := s.deps.Payments.Refund(c.Request.Context(), usecase.RefundRequest{
		OrderID: c.Param("orderId"),
		Amount:  req.Amount,
		Reason:  req.Reason,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"success": res.Success, "message": res.Message, "order": res.Order})
}
