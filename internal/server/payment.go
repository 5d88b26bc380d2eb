package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/billdesk/internal/payment/domain"
)

type recordPaymentRequest struct {
	Amount      int64   `json:"amount" binding:"required,min=1"`
	Method      string  `json:"method" binding:"max=64"`
	PaymentDate *string `json:"payment_date"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	paymentDate, ok := parseDateField(c, "payment_date", req.PaymentDate)
	if !ok {
		return
	}

	resp, err := s.paymentSvc.Record(c.Request.Context(), paymentdomain.RecordPaymentRequest{
		InvoiceID:   strings.TrimSpace(c.Param("id")),
		Amount:      req.Amount,
		Method:      strings.TrimSpace(req.Method),
		PaymentDate: paymentDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	items, err := s.paymentSvc.ListForInvoice(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) DeletePayment(c *gin.Context) {
	err := s.paymentSvc.Delete(c.Request.Context(), paymentdomain.DeletePaymentRequest{
		ID:           strings.TrimSpace(c.Param("id")),
		AssignedToID: strings.TrimSpace(c.Query("assigned_to_id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func isPaymentValidationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidMethod),
		errors.Is(err, paymentdomain.ErrInvalidAssignee):
		return true
	default:
		return false
	}
}
