package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/clock"
	invoicedomain "github.com/smallbiznis/billdesk/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/billdesk/internal/observability/metrics"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/billdesk/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	Authz      authorization.Service
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	authz      authorization.Service
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		authz:      p.Authz,
		clock:      clock.OrSystem(p.Clock),
		obsMetrics: p.ObsMetrics,
	}
}

// Record stores a payment and marks the invoice PAID once payments cover its total.
// A partial payment never changes the invoice status.
func (s *Service) Record(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.Payment, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.PaymentCreate); err != nil {
		return paymentdomain.Payment{}, err
	}

	invoiceID, err := parseID(req.InvoiceID)
	if err != nil {
		return paymentdomain.Payment{}, paymentdomain.ErrNotFound
	}
	if req.Amount < 1 {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidAmount
	}
	method := strings.TrimSpace(req.Method)
	if len(method) > paymentdomain.MaxMethodLength {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidMethod
	}

	now := s.clock.Now()
	paymentDate := now
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		paymentDate = req.PaymentDate.UTC()
	}

	payment := paymentdomain.Payment{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		InvoiceID:   invoiceID,
		Amount:      req.Amount,
		Method:      method,
		PaymentDate: paymentDate,
		CreatedAt:   now,
	}

	var transitioned *invoicedomain.InvoiceStatus
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.LoadInvoice(ctx, tx, orgID, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return paymentdomain.ErrNotFound
		}

		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		paid, err := s.repo.SumByInvoice(ctx, tx, orgID, invoiceID)
		if err != nil {
			return err
		}

		current := invoicedomain.InvoiceStatus(invoice.Status)
		if paid >= invoice.Total && current != invoicedomain.InvoiceStatusPaid {
			if err := s.repo.UpdateInvoiceStatus(ctx, tx, orgID, invoiceID, string(invoicedomain.InvoiceStatusPaid), now); err != nil {
				return fmt.Errorf("mark invoice paid: %w", err)
			}
			transitioned = &current
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, paymentdomain.ErrNotFound) {
			s.log.Error("failed to record payment",
				zap.Error(err),
				zap.String("org_id", orgID.String()),
				zap.String("invoice_id", invoiceID.String()),
			)
		}
		return paymentdomain.Payment{}, err
	}

	s.obsMetrics.RecordPaymentRecorded(ctx, method, payment.Amount)
	if transitioned != nil {
		s.obsMetrics.RecordInvoiceStatus(ctx, string(*transitioned), string(invoicedomain.InvoiceStatusPaid))
	}
	return payment, nil
}

func (s *Service) ListForInvoice(ctx context.Context, invoiceID string) ([]paymentdomain.Payment, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, authorization.PaymentView); err != nil {
		return nil, err
	}

	id, err := parseID(invoiceID)
	if err != nil {
		return nil, paymentdomain.ErrNotFound
	}
	invoice, err := s.repo.LoadInvoice(ctx, s.db, orgID, id, false)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, paymentdomain.ErrNotFound
	}

	items, err := s.repo.ListByInvoice(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []paymentdomain.Payment{}
	}
	return items, nil
}

// Delete removes a payment. When the remaining payments no longer cover a PAID
// invoice, the invoice goes back to SENT; it reads as OVERDUE once past due.
func (s *Service) Delete(ctx context.Context, req paymentdomain.DeletePaymentRequest) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, authorization.PaymentDelete); err != nil {
		return err
	}

	paymentID, err := parseID(req.ID)
	if err != nil {
		return paymentdomain.ErrNotFound
	}
	var assignee snowflake.ID
	if strings.TrimSpace(req.AssignedToID) != "" {
		assignee, err = parseID(req.AssignedToID)
		if err != nil {
			return paymentdomain.ErrInvalidAssignee
		}
	}

	now := s.clock.Now()
	reverted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindByID(ctx, tx, orgID, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrNotFound
		}

		invoice, err := s.repo.LoadInvoice(ctx, tx, orgID, payment.InvoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return paymentdomain.ErrNotFound
		}
		if assignee != 0 && (invoice.AssignedToID == nil || *invoice.AssignedToID != assignee) {
			return paymentdomain.ErrNotFound
		}

		rows, err := s.repo.Delete(ctx, tx, orgID, payment.ID)
		if err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		if rows == 0 {
			return paymentdomain.ErrNotFound
		}

		paid, err := s.repo.SumByInvoice(ctx, tx, orgID, invoice.ID)
		if err != nil {
			return err
		}
		if paid < invoice.Total && invoicedomain.InvoiceStatus(invoice.Status) == invoicedomain.InvoiceStatusPaid {
			if err := s.repo.UpdateInvoiceStatus(ctx, tx, orgID, invoice.ID, string(invoicedomain.InvoiceStatusSent), now); err != nil {
				return fmt.Errorf("revert invoice status: %w", err)
			}
			reverted = true
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, paymentdomain.ErrNotFound) {
			s.log.Error("failed to delete payment",
				zap.Error(err),
				zap.String("org_id", orgID.String()),
				zap.String("payment_id", paymentID.String()),
			)
		}
		return err
	}

	s.obsMetrics.RecordPaymentDeleted(ctx)
	if reverted {
		s.obsMetrics.RecordInvoiceStatus(ctx, string(invoicedomain.InvoiceStatusPaid), string(invoicedomain.InvoiceStatusSent))
	}
	return nil
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, paymentdomain.ErrInvalidOrganization
	}
	return orgID, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, paymentdomain.ErrInvalidID
	}
	return id, nil
}

