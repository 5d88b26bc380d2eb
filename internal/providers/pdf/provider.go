package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

// Provider renders printable documents.
type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
	GenerateQuote(ctx context.Context, data QuoteData) (io.Reader, error)
}

// LineItem is one priced row as it appears on paper. Amounts are preformatted.
type LineItem struct {
	Description string
	Qty         int64
	UnitPrice   string
	Tax         string
	Amount      string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}
