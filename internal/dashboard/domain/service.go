package domain

import (
	"context"
	"errors"
	"strings"
)

type Range string

const (
	Range7d  Range = "7d"
	Range30d Range = "30d"
	Range90d Range = "90d"
	RangeAll Range = "all"
)

// Days returns the lookback window, or 0 for RangeAll.
func (r Range) Days() int {
	switch r {
	case Range7d:
		return 7
	case Range30d:
		return 30
	case Range90d:
		return 90
	default:
		return 0
	}
}

// ParseRange defaults to 30d when raw is empty.
func ParseRange(raw string) (Range, error) {
	value := Range(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case "":
		return Range30d, nil
	case Range7d, Range30d, Range90d, RangeAll:
		return value, nil
	default:
		return "", ErrInvalidRange
	}
}

type SummaryResponse struct {
	Currency     string `json:"currency"`
	TotalRevenue int64  `json:"total_revenue"`
	TotalPending int64  `json:"total_pending"`
	OverdueTotal int64  `json:"overdue_total"`
	InvoiceCount int64  `json:"invoice_count"`
}

type RevenuePoint struct {
	Date    string `json:"date"`
	Revenue int64  `json:"revenue"`
}

type RevenueResponse struct {
	Currency string         `json:"currency"`
	Range    Range          `json:"range"`
	Series   []RevenuePoint `json:"series"`
}

type Service interface {
	Summary(ctx context.Context) (SummaryResponse, error)
	Revenue(ctx context.Context, rawRange string) (RevenueResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidRange        = errors.New("invalid_range")
)
