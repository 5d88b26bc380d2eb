package pdf

import (
	"fmt"

	"github.com/gosimple/slug"
)

// InvoiceFileName builds the download name for an invoice document.
func InvoiceFileName(customerName, id string) string {
	return fileName("invoice", customerName, id)
}

// QuoteFileName builds the download name for a quote document.
func QuoteFileName(customerName, quoteNumber string) string {
	return fileName("quote", customerName, quoteNumber)
}

func fileName(kind, customerName, ref string) string {
	name := slug.Make(customerName)
	if name == "" {
		return fmt.Sprintf("%s-%s.pdf", kind, slug.Make(ref))
	}
	return fmt.Sprintf("%s-%s-%s.pdf", kind, name, slug.Make(ref))
}
