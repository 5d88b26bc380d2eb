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

type QuoteData struct {
	OrgName     string
	QuoteNumber string
	Status      string
	IssueDate   string
	ExpiryDate  string

	BillToName    string
	BillToAddress string
	BillToEmail   string

	Items []LineItem

	Subtotal string
	Tax      string
	Total    string
}

func (p *PDFProvider) GenerateQuote(ctx context.Context, quote QuoteData) (io.Reader, error) {
	if quote.QuoteNumber == "" {
		return nil, errors.New("quote number is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(8, quote.OrgName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Quote", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	expiry := quote.ExpiryDate
	if expiry == "" {
		expiry = "-"
	}
	m.AddRow(24,
		col.New(6).Add(
			text.New("Quote number: "+quote.QuoteNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+quote.IssueDate, props.Text{Top: 4}),
			text.New("Valid until: "+expiry, props.Text{Top: 8}),
			text.New("Status: "+quote.Status, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Prepared for", props.Text{Style: fontstyle.Bold}),
			text.New(quote.BillToName, props.Text{Top: 5}),
			text.New(quote.BillToAddress, props.Text{Top: 9}),
			text.New(quote.BillToEmail, props.Text{Top: 13}),
		),
	)

	m.AddRow(10,
		text.NewCol(5, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Rate", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Tax", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range quote.Items {
		m.AddRow(10,
			text.NewCol(5, item.Description, props.Text{Size: 9}),
			text.NewCol(1, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Tax, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	totals := []totalRow{
		{label: "Subtotal", value: quote.Subtotal},
		{label: "Tax", value: quote.Tax},
		{label: "Total", value: quote.Total, bold: true},
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
