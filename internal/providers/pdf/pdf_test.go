package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInvoice(t *testing.T) {
	reader, err := New().GenerateInvoice(context.Background(), InvoiceData{
		OrgName:       "Acme Studio",
		InvoiceNumber: "1790000000000000000",
		Status:        "OVERDUE",
		IssueDate:     "2025-01-01",
		DueDate:       "2025-01-31",
		BillToName:    "Globex",
		Items: []LineItem{
			{Description: "Design", Qty: 2, UnitPrice: "USD 50.00", Amount: "USD 100.00"},
		},
		Subtotal:   "USD 100.00",
		Tax:        "USD 10.00",
		Total:      "USD 110.00",
		AmountPaid: "USD 0.00",
		AmountDue:  "USD 110.00",
	})
	require.NoError(t, err)

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
}

func TestGenerateQuote(t *testing.T) {
	reader, err := New().GenerateQuote(context.Background(), QuoteData{
		OrgName:     "Acme Studio",
		QuoteNumber: "QT-0001",
		Status:      "DRAFT",
		IssueDate:   "2025-01-01",
		Items: []LineItem{
			{Description: "Audit", Qty: 1, UnitPrice: "USD 80.00", Tax: "USD 8.00", Amount: "USD 88.00"},
		},
		Subtotal: "USD 80.00",
		Tax:      "USD 8.00",
		Total:    "USD 88.00",
	})
	require.NoError(t, err)

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
}

func TestGenerateRequiresNumber(t *testing.T) {
	_, err := New().GenerateInvoice(context.Background(), InvoiceData{})
	assert.Error(t, err)

	_, err = New().GenerateQuote(context.Background(), QuoteData{})
	assert.Error(t, err)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "invoice-globex-corp-123.pdf", InvoiceFileName("Globex Corp", "123"))
	assert.Equal(t, "quote-acme-qt-0007.pdf", QuoteFileName("Acme", "QT-0007"))
	assert.Equal(t, "invoice-9.pdf", InvoiceFileName("", "9"))
}
