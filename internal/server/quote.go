package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	quotedomain "github.com/smallbiznis/billdesk/internal/quote/domain"
)

type quoteItemRequest struct {
	Description string `json:"description" binding:"required"`
	Quantity    int64  `json:"quantity" binding:"required,min=1"`
	Rate        int64  `json:"rate" binding:"min=0"`
	Tax         int64  `json:"tax" binding:"min=0"`
}

type createQuoteRequest struct {
	CustomerID string             `json:"customer_id" binding:"required"`
	IssueDate  *string            `json:"issue_date"`
	ExpiryDate *string            `json:"expiry_date"`
	Status     string             `json:"status"`
	Items      []quoteItemRequest `json:"items" binding:"required,min=1,dive"`
}

type updateQuoteRequest struct {
	CustomerID *string            `json:"customer_id"`
	IssueDate  *string            `json:"issue_date"`
	ExpiryDate *string            `json:"expiry_date"`
	Status     *string            `json:"status"`
	Items      []quoteItemRequest `json:"items" binding:"omitempty,dive"`
}

func (s *Server) CreateQuote(c *gin.Context) {
	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	issueDate, ok := parseDateField(c, "issue_date", req.IssueDate)
	if !ok {
		return
	}
	expiryDate, ok := parseDateField(c, "expiry_date", req.ExpiryDate)
	if !ok {
		return
	}

	resp, err := s.quoteSvc.Create(c.Request.Context(), quotedomain.CreateQuoteRequest{
		CustomerID: strings.TrimSpace(req.CustomerID),
		IssueDate:  issueDate,
		ExpiryDate: expiryDate,
		Status:     strings.TrimSpace(req.Status),
		Items:      quoteItemInputs(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListQuotes(c *gin.Context) {
	var query struct {
		Page       int    `form:"page" binding:"omitempty,min=1"`
		Limit      int    `form:"limit" binding:"omitempty,min=1"`
		Status     string `form:"status"`
		CustomerID string `form:"customer_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.quoteSvc.List(c.Request.Context(), quotedomain.ListQuoteRequest{
		Status:     strings.TrimSpace(query.Status),
		CustomerID: strings.TrimSpace(query.CustomerID),
		Page:       query.Page,
		Limit:      query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetQuoteByID(c *gin.Context) {
	resp, err := s.quoteSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateQuote(c *gin.Context) {
	var req updateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	issueDate, ok := parseDateField(c, "issue_date", req.IssueDate)
	if !ok {
		return
	}
	expiryDate, ok := parseDateField(c, "expiry_date", req.ExpiryDate)
	if !ok {
		return
	}

	resp, err := s.quoteSvc.Update(c.Request.Context(), quotedomain.UpdateQuoteRequest{
		ID:         strings.TrimSpace(c.Param("id")),
		CustomerID: trimmedPtr(req.CustomerID),
		IssueDate:  issueDate,
		ExpiryDate: expiryDate,
		Status:     trimmedPtr(req.Status),
		Items:      quoteItemInputs(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteQuote(c *gin.Context) {
	if err := s.quoteSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) RenderQuotePDF(c *gin.Context) {
	doc, err := s.quoteSvc.RenderPDF(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeDocument(c, doc.FileName, doc.ContentType, doc.Content)
}

func quoteItemInputs(items []quoteItemRequest) []quotedomain.ItemInput {
	if items == nil {
		return nil
	}
	out := make([]quotedomain.ItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, quotedomain.ItemInput{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Tax:         item.Tax,
		})
	}
	return out
}

func isQuoteValidationError(err error) bool {
	switch {
	case errors.Is(err, quotedomain.ErrInvalidCustomerID),
		errors.Is(err, quotedomain.ErrInvalidDescription),
		errors.Is(err, quotedomain.ErrInvalidStatus),
		errors.Is(err, quotedomain.ErrInvalidExpiryDate):
		return true
	default:
		return false
	}
}
