package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/billdesk/internal/invoice/domain"
)

type invoiceItemRequest struct {
	Description string `json:"description" binding:"required"`
	Quantity    int64  `json:"quantity" binding:"required,min=1"`
	Price       int64  `json:"price" binding:"min=0"`
}

type createInvoiceRequest struct {
	CustomerID string               `json:"customer_id" binding:"required"`
	IssueDate  *string              `json:"issue_date"`
	DueDate    *string              `json:"due_date"`
	TaxRate    decimal.Decimal      `json:"tax_rate"`
	Items      []invoiceItemRequest `json:"items" binding:"required,min=1,dive"`
}

type updateInvoiceRequest struct {
	CustomerID *string              `json:"customer_id"`
	IssueDate  *string              `json:"issue_date"`
	DueDate    *string              `json:"due_date"`
	TaxRate    *decimal.Decimal     `json:"tax_rate"`
	Status     *string              `json:"status"`
	Items      []invoiceItemRequest `json:"items" binding:"omitempty,dive"`
}

type updateInvoiceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	issueDate, ok := parseDateField(c, "issue_date", req.IssueDate)
	if !ok {
		return
	}
	dueDate, ok := parseDateField(c, "due_date", req.DueDate)
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		CustomerID: strings.TrimSpace(req.CustomerID),
		IssueDate:  issueDate,
		DueDate:    dueDate,
		TaxRate:    req.TaxRate,
		Items:      invoiceItemInputs(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		Page         int    `form:"page" binding:"omitempty,min=1"`
		Limit        int    `form:"limit" binding:"omitempty,min=1"`
		Status       string `form:"status"`
		CustomerID   string `form:"customer_id"`
		AssignedToID string `form:"assigned_to_id"`
		StartDate    string `form:"start_date"`
		EndDate      string `form:"end_date"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	startDate, err := parseOptionalTime(query.StartDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	endDate, err := parseOptionalTime(query.EndDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Status:       strings.TrimSpace(query.Status),
		CustomerID:   strings.TrimSpace(query.CustomerID),
		AssignedToID: strings.TrimSpace(query.AssignedToID),
		StartDate:    startDate,
		EndDate:      endDate,
		Page:         query.Page,
		Limit:        query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	item, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	issueDate, ok := parseDateField(c, "issue_date", req.IssueDate)
	if !ok {
		return
	}
	dueDate, ok := parseDateField(c, "due_date", req.DueDate)
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.Update(c.Request.Context(), invoicedomain.UpdateInvoiceRequest{
		ID:         strings.TrimSpace(c.Param("id")),
		CustomerID: trimmedPtr(req.CustomerID),
		IssueDate:  issueDate,
		DueDate:    dueDate,
		TaxRate:    req.TaxRate,
		Status:     trimmedPtr(req.Status),
		Items:      invoiceItemInputs(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateInvoiceStatus(c *gin.Context) {
	var req updateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.invoiceSvc.UpdateStatus(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) RenderInvoicePDF(c *gin.Context) {
	doc, err := s.invoiceSvc.RenderPDF(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeDocument(c, doc.FileName, doc.ContentType, doc.Content)
}

// invoiceItemInputs keeps nil distinct from empty so partial updates can tell
// "leave lines alone" from "replace with nothing".
func invoiceItemInputs(items []invoiceItemRequest) []invoicedomain.ItemInput {
	if items == nil {
		return nil
	}
	out := make([]invoicedomain.ItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, invoicedomain.ItemInput{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return out
}

func writeDocument(c *gin.Context, fileName, contentType string, content []byte) {
	if contentType == "" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, contentType, content)
}

func isInvoiceValidationError(err error) bool {
	switch {
	case errors.Is(err, invoicedomain.ErrInvalidCustomerID),
		errors.Is(err, invoicedomain.ErrInvalidDescription),
		errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, invoicedomain.ErrInvalidDueDate),
		errors.Is(err, invoicedomain.ErrInvalidDateRange):
		return true
	default:
		return false
	}
}
