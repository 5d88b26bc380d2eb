package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/billdesk/internal/auth"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/config"
	customerdomain "github.com/smallbiznis/billdesk/internal/customer/domain"
	dashboarddomain "github.com/smallbiznis/billdesk/internal/dashboard/domain"
	invoicedomain "github.com/smallbiznis/billdesk/internal/invoice/domain"
	"github.com/smallbiznis/billdesk/internal/observability"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/billdesk/internal/payment/domain"
	quotedomain "github.com/smallbiznis/billdesk/internal/quote/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testOrgID   snowflake.ID = 1001
	testAdminID snowflake.ID = 11
	testStaffID snowflake.ID = 12
)

type testServer struct {
	srv    *Server
	tokens *auth.TokenManager
}

type serverDeps struct {
	customers *fakeCustomerService
	invoices  *fakeInvoiceService
	payments  *fakePaymentService
	quotes    *fakeQuoteService
	dashboard *fakeDashboardService
	limiter   *fakeWriteLimiter
}

func newTestServer(t *testing.T, deps serverDeps) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokenManager(config.Config{
		AuthJWTSecret: "test-secret",
		AuthJWTIssuer: "billdesk",
	}, nil)
	require.NoError(t, err)

	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})

	p := ServerParams{
		Gin:      NewEngine(observability.Config{}, nil),
		Tokens:   tokens,
		AuthzSvc: authz,
	}
	if deps.customers != nil {
		p.CustomerSvc = deps.customers
	}
	if deps.invoices != nil {
		p.InvoiceSvc = deps.invoices
	}
	if deps.payments != nil {
		p.PaymentSvc = deps.payments
	}
	if deps.quotes != nil {
		p.QuoteSvc = deps.quotes
	}
	if deps.dashboard != nil {
		p.DashboardSvc = deps.dashboard
	}

	srv := NewServer(p)
	if deps.limiter != nil {
		srv.writeLimiter = deps.limiter
	}
	return &testServer{srv: srv, tokens: tokens}
}

func (ts *testServer) token(t *testing.T, identity orgcontext.Identity) string {
	t.Helper()
	token, err := ts.tokens.Issue(identity)
	require.NoError(t, err)
	return token
}

func (ts *testServer) adminToken(t *testing.T) string {
	return ts.token(t, orgcontext.Identity{UserID: testAdminID, OrgID: testOrgID, Role: authorization.RoleAdmin})
}

func (ts *testServer) staffToken(t *testing.T) string {
	return ts.token(t, orgcontext.Identity{UserID: testStaffID, OrgID: testOrgID, Role: authorization.RoleStaff})
}

func (ts *testServer) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body), resp.Body.String())
	return body.Error
}

func errorFields(payload errorPayload) []string {
	fields := make([]string, 0, len(payload.Errors))
	for _, e := range payload.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}

type fakeCustomerService struct {
	created     []customerdomain.CreateCustomerRequest
	deleteCalls int
	err         error
}

func (f *fakeCustomerService) Create(_ context.Context, req customerdomain.CreateCustomerRequest) (customerdomain.Customer, error) {
	if f.err != nil {
		return customerdomain.Customer{}, f.err
	}
	f.created = append(f.created, req)
	return customerdomain.Customer{ID: 5001, OrgID: testOrgID, Name: req.Name, Email: req.Email}, nil
}

func (f *fakeCustomerService) List(_ context.Context, req customerdomain.ListCustomerRequest) (customerdomain.ListCustomerResponse, error) {
	return customerdomain.ListCustomerResponse{Data: []customerdomain.Customer{}}, f.err
}

func (f *fakeCustomerService) GetByID(_ context.Context, id string) (customerdomain.Customer, error) {
	return customerdomain.Customer{}, f.err
}

func (f *fakeCustomerService) Update(_ context.Context, req customerdomain.UpdateCustomerRequest) (customerdomain.Customer, error) {
	return customerdomain.Customer{}, f.err
}

func (f *fakeCustomerService) Delete(_ context.Context, id string) error {
	f.deleteCalls++
	return f.err
}

type fakeInvoiceService struct {
	createCalls int
	lastList    invoicedomain.ListInvoiceRequest
	err         error
	doc         invoicedomain.Document
}

func (f *fakeInvoiceService) Create(_ context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	f.createCalls++
	return invoicedomain.Invoice{}, f.err
}

func (f *fakeInvoiceService) List(_ context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	f.lastList = req
	return invoicedomain.ListInvoiceResponse{Data: []invoicedomain.Invoice{}}, f.err
}

func (f *fakeInvoiceService) GetByID(_ context.Context, id string) (invoicedomain.InvoiceDetail, error) {
	return invoicedomain.InvoiceDetail{}, f.err
}

func (f *fakeInvoiceService) Update(_ context.Context, req invoicedomain.UpdateInvoiceRequest) (invoicedomain.InvoiceDetail, error) {
	return invoicedomain.InvoiceDetail{}, f.err
}

func (f *fakeInvoiceService) UpdateStatus(_ context.Context, id string, status string) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, f.err
}

func (f *fakeInvoiceService) Delete(_ context.Context, id string) error {
	return f.err
}

func (f *fakeInvoiceService) RenderPDF(_ context.Context, id string) (invoicedomain.Document, error) {
	return f.doc, f.err
}

type fakePaymentService struct {
	lastRecord paymentdomain.RecordPaymentRequest
	lastDelete paymentdomain.DeletePaymentRequest
	err        error
}

func (f *fakePaymentService) Record(_ context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.Payment, error) {
	f.lastRecord = req
	return paymentdomain.Payment{ID: 9001, Amount: req.Amount, Method: req.Method}, f.err
}

func (f *fakePaymentService) ListForInvoice(_ context.Context, invoiceID string) ([]paymentdomain.Payment, error) {
	return []paymentdomain.Payment{}, f.err
}

func (f *fakePaymentService) Delete(_ context.Context, req paymentdomain.DeletePaymentRequest) error {
	f.lastDelete = req
	return f.err
}

type fakeQuoteService struct {
	list quotedomain.ListQuoteResponse
	err  error
}

func (f *fakeQuoteService) Create(_ context.Context, req quotedomain.CreateQuoteRequest) (quotedomain.Quote, error) {
	return quotedomain.Quote{}, f.err
}

func (f *fakeQuoteService) List(_ context.Context, req quotedomain.ListQuoteRequest) (quotedomain.ListQuoteResponse, error) {
	return f.list, f.err
}

func (f *fakeQuoteService) GetByID(_ context.Context, id string) (quotedomain.Quote, error) {
	return quotedomain.Quote{}, f.err
}

func (f *fakeQuoteService) Update(_ context.Context, req quotedomain.UpdateQuoteRequest) (quotedomain.Quote, error) {
	return quotedomain.Quote{}, f.err
}

func (f *fakeQuoteService) Delete(_ context.Context, id string) error {
	return f.err
}

func (f *fakeQuoteService) RenderPDF(_ context.Context, id string) (quotedomain.Document, error) {
	return quotedomain.Document{}, f.err
}

type fakeDashboardService struct {
	lastRange string
	err       error
}

func (f *fakeDashboardService) Summary(_ context.Context) (dashboarddomain.SummaryResponse, error) {
	return dashboarddomain.SummaryResponse{Currency: "USD", TotalRevenue: 1500, InvoiceCount: 2}, f.err
}

func (f *fakeDashboardService) Revenue(_ context.Context, rawRange string) (dashboarddomain.RevenueResponse, error) {
	f.lastRange = rawRange
	if f.err != nil {
		return dashboarddomain.RevenueResponse{}, f.err
	}
	if _, err := dashboarddomain.ParseRange(rawRange); err != nil {
		return dashboarddomain.RevenueResponse{}, err
	}
	return dashboarddomain.RevenueResponse{Currency: "USD", Range: dashboarddomain.Range30d, Series: []dashboarddomain.RevenuePoint{}}, nil
}
