package service

import (
	"context"
	"errors"
	"io"

	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/money"
	organizationdomain "github.com/smallbiznis/billdesk/internal/organization/domain"
	"github.com/smallbiznis/billdesk/internal/providers/pdf"
	quotedomain "github.com/smallbiznis/billdesk/internal/quote/domain"
)

const dateLayout = "2006-01-02"

func (s *Service) RenderPDF(ctx context.Context, id string) (quotedomain.Document, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return quotedomain.Document{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.QuoteView); err != nil {
		return quotedomain.Document{}, err
	}
	if s.pdf == nil {
		return quotedomain.Document{}, errors.New("pdf renderer not configured")
	}

	quoteID, err := parseID(id)
	if err != nil {
		return quotedomain.Document{}, err
	}
	quote, err := s.loadQuote(ctx, s.db, orgID, quoteID)
	if err != nil {
		return quotedomain.Document{}, err
	}
	org, err := s.orgRepo.WithTx(s.db).FindByID(ctx, orgID)
	if err != nil {
		return quotedomain.Document{}, err
	}
	if org == nil {
		return quotedomain.Document{}, quotedomain.ErrInvalidOrganization
	}

	reader, err := s.pdf.GenerateQuote(ctx, buildQuoteData(org, quote))
	if err != nil {
		return quotedomain.Document{}, err
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return quotedomain.Document{}, err
	}

	customerName := ""
	if quote.Customer != nil {
		customerName = quote.Customer.Name
	}
	return quotedomain.Document{
		FileName:    pdf.QuoteFileName(customerName, quote.QuoteNumber),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

func buildQuoteData(org *organizationdomain.Organization, quote quotedomain.Quote) pdf.QuoteData {
	currency := org.Currency
	data := pdf.QuoteData{
		OrgName:     org.Name,
		QuoteNumber: quote.QuoteNumber,
		Status:      string(quote.Status),
		IssueDate:   quote.IssueDate.Format(dateLayout),
		Subtotal:    money.Format(quote.Subtotal, currency),
		Tax:         money.Format(quote.Tax, currency),
		Total:       money.Format(quote.Total, currency),
	}
	if quote.ExpiryDate != nil {
		data.ExpiryDate = quote.ExpiryDate.Format(dateLayout)
	}
	if quote.Customer != nil {
		data.BillToName = quote.Customer.Name
		data.BillToAddress = quote.Customer.Address
		data.BillToEmail = quote.Customer.Email
	}
	for _, item := range quote.Items {
		data.Items = append(data.Items, pdf.LineItem{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   money.Format(item.Rate, currency),
			Tax:         money.Format(item.Tax, currency),
			Amount:      money.Format(item.Total, currency),
		})
	}
	return data
}
