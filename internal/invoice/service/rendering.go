package service

import (
	"context"
	"errors"
	"io"

	"github.com/smallbiznis/billdesk/internal/authorization"
	invoicedomain "github.com/smallbiznis/billdesk/internal/invoice/domain"
	"github.com/smallbiznis/billdesk/internal/money"
	organizationdomain "github.com/smallbiznis/billdesk/internal/organization/domain"
	"github.com/smallbiznis/billdesk/internal/providers/pdf"
)

const dateLayout = "2006-01-02"

// RenderPDF renders the invoice as it currently reads, display status included.
func (s *Service) RenderPDF(ctx context.Context, id string) (invoicedomain.Document, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Document{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.InvoiceView); err != nil {
		return invoicedomain.Document{}, err
	}
	if s.pdf == nil {
		return invoicedomain.Document{}, errors.New("pdf renderer not configured")
	}

	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.Document{}, err
	}
	detail, err := s.loadDetail(ctx, s.db, orgID, invoiceID)
	if err != nil {
		return invoicedomain.Document{}, err
	}

	org, err := s.orgRepo.WithTx(s.db).FindByID(ctx, orgID)
	if err != nil {
		return invoicedomain.Document{}, err
	}
	if org == nil {
		return invoicedomain.Document{}, invoicedomain.ErrInvalidOrganization
	}

	reader, err := s.pdf.GenerateInvoice(ctx, buildInvoiceData(org, detail))
	if err != nil {
		return invoicedomain.Document{}, err
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return invoicedomain.Document{}, err
	}

	customerName := ""
	if detail.Customer != nil {
		customerName = detail.Customer.Name
	}
	return invoicedomain.Document{
		FileName:    pdf.InvoiceFileName(customerName, detail.ID.String()),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

func buildInvoiceData(org *organizationdomain.Organization, detail invoicedomain.InvoiceDetail) pdf.InvoiceData {
	currency := org.Currency
	data := pdf.InvoiceData{
		OrgName:       org.Name,
		InvoiceNumber: detail.ID.String(),
		Status:        string(detail.Status),
		IssueDate:     detail.IssueDate.Format(dateLayout),
		DueDate:       detail.DueDate.Format(dateLayout),
		Subtotal:      money.Format(detail.Subtotal, currency),
		Tax:           money.Format(detail.Tax, currency),
		Total:         money.Format(detail.Total, currency),
		AmountPaid:    money.Format(detail.AmountPaid, currency),
		AmountDue:     money.Format(detail.AmountDue, currency),
	}
	if detail.Customer != nil {
		data.BillToName = detail.Customer.Name
		data.BillToAddress = detail.Customer.Address
		data.BillToEmail = detail.Customer.Email
	}
	for _, item := range detail.Items {
		data.Items = append(data.Items, pdf.LineItem{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   money.Format(item.Price, currency),
			Amount:      money.Format(item.Total, currency),
		})
	}
	return data
}
