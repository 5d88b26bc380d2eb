package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type InvoiceData struct {
	OrgName       string
	InvoiceNumber string
	Status        string
	IssueDate     string
	DueDate       string

	BillToName    string
	BillToAddress string
	BillToEmail   string

	Items []LineItem

	Subtotal   string
	Tax        string
	Total      string
	AmountPaid string
	AmountDue  string
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, invoice InvoiceData) (io.Reader, error) {
	if invoice.InvoiceNumber == "" {
		return nil, errors.New("invoice number is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(8, invoice.OrgName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+invoice.IssueDate, props.Text{Top: 4}),
			text.New("Date due: "+invoice.DueDate, props.Text{Top: 8}),
			text.New("Status: "+invoice.Status, props.Text{Top: 12, Style: fontstyle.Bold}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.BillToName, props.Text{Top: 5}),
			text.New(invoice.BillToAddress, props.Text{Top: 9}),
			text.New(invoice.BillToEmail, props.Text{Top: 13}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, invoice.AmountDue+" due "+invoice.DueDate, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range invoice.Items {
		m.AddRow(10,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	totals := []totalRow{
		{label: "Subtotal", value: invoice.Subtotal},
		{label: "Tax", value: invoice.Tax},
		{label: "Total", value: invoice.Total},
		{label: "Amount paid", value: invoice.AmountPaid},
		{label: "Amount due", value: invoice.AmountDue, bold: true},
	}
	for _, row := range totals {
		label := props.Text{Size: 9}
		if row.bold {
			label.Style = fontstyle.Bold
		}
		value := label
		value.Align = align.Right
		m.AddRow(8,
			col.New(8),
			text.NewCol(2, row.label, label),
			text.NewCol(2, row.value, value),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

type totalRow struct {
	label string
	value string
	bold  bool
}
