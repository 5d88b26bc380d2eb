package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/smallbiznis/billdesk/internal/authorization"
	customerdomain "github.com/smallbiznis/billdesk/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/billdesk/internal/invoice/domain"
	"github.com/smallbiznis/billdesk/internal/money"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/billdesk/internal/payment/domain"
	quotedomain "github.com/smallbiznis/billdesk/internal/quote/domain"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	ts := newTestServer(t, serverDeps{})

	resp := ts.do(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestAPIRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t, serverDeps{customers: &fakeCustomerService{}})

	resp := ts.do(t, http.MethodGet, "/api/customers", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", decodeError(t, resp).Type)

	resp = ts.do(t, http.MethodGet, "/api/customers", "not-a-jwt", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestTokenWithoutOrganization(t *testing.T) {
	customers := &fakeCustomerService{}
	ts := newTestServer(t, serverDeps{customers: customers})
	token := ts.token(t, orgcontext.Identity{UserID: testAdminID, Role: authorization.RoleAdmin})

	resp := ts.do(t, http.MethodPost, "/api/customers", token, `{"name":"Acme"}`)

	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "not_in_organization", decodeError(t, resp).Type)
	assert.Empty(t, customers.created)
}

func TestMeReturnsRolePermissions(t *testing.T) {
	ts := newTestServer(t, serverDeps{})

	resp := ts.do(t, http.MethodGet, "/api/me", ts.staffToken(t), "")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data meResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, testStaffID.String(), body.Data.UserID)
	assert.Equal(t, testOrgID.String(), body.Data.OrgID)
	assert.Equal(t, authorization.RoleStaff, body.Data.Role)
	assert.Contains(t, body.Data.Permissions, "quote:delete")
	assert.NotContains(t, body.Data.Permissions, "customer:delete")
	assert.NotContains(t, body.Data.Permissions, "report:view")
}

func TestStaffCannotDeleteCustomer(t *testing.T) {
	customers := &fakeCustomerService{}
	ts := newTestServer(t, serverDeps{customers: customers})

	resp := ts.do(t, http.MethodDelete, "/api/customers/5001", ts.staffToken(t), "")

	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "forbidden", decodeError(t, resp).Type)
	assert.Zero(t, customers.deleteCalls)
}

func TestStaffCannotViewDashboard(t *testing.T) {
	ts := newTestServer(t, serverDeps{dashboard: &fakeDashboardService{}})

	resp := ts.do(t, http.MethodGet, "/api/dashboard/summary", ts.staffToken(t), "")
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.do(t, http.MethodGet, "/api/dashboard/summary", ts.adminToken(t), "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"currency":"USD","total_revenue":1500,"total_pending":0,"overdue_total":0,"invoice_count":2}}`, resp.Body.String())
}

func TestDashboardRevenueRejectsUnknownRange(t *testing.T) {
	dashboard := &fakeDashboardService{}
	ts := newTestServer(t, serverDeps{dashboard: dashboard})

	resp := ts.do(t, http.MethodGet, "/api/dashboard/revenue?range=1y", ts.adminToken(t), "")

	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)
	assert.Equal(t, []string{"range"}, errorFields(payload))
	assert.Equal(t, "1y", dashboard.lastRange)
}

func TestCreateCustomerReturnsCreated(t *testing.T) {
	customers := &fakeCustomerService{}
	ts := newTestServer(t, serverDeps{customers: customers})

	resp := ts.do(t, http.MethodPost, "/api/customers", ts.staffToken(t), `{"name":"  Acme  ","email":"billing@acme.test"}`)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Len(t, customers.created, 1)
	assert.Equal(t, "Acme", customers.created[0].Name)

	var body struct {
		Data customerdomain.Customer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "Acme", body.Data.Name)
}

func TestCreateCustomerMissingName(t *testing.T) {
	customers := &fakeCustomerService{}
	ts := newTestServer(t, serverDeps{customers: customers})

	resp := ts.do(t, http.MethodPost, "/api/customers", ts.adminToken(t), `{"email":"billing@acme.test"}`)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)
	assert.Equal(t, []string{"name"}, errorFields(payload))
	assert.Empty(t, customers.created)
}

func TestDeleteReferencedCustomerConflicts(t *testing.T) {
	ts := newTestServer(t, serverDeps{customers: &fakeCustomerService{err: customerdomain.ErrInUse}})

	resp := ts.do(t, http.MethodDelete, "/api/customers/5001", ts.adminToken(t), "")

	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "conflict", decodeError(t, resp).Type)
}

func TestCreateInvoiceValidatesBody(t *testing.T) {
	invoices := &fakeInvoiceService{}
	ts := newTestServer(t, serverDeps{invoices: invoices})

	resp := ts.do(t, http.MethodPost, "/api/invoices", ts.adminToken(t), `{"items":[]}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.ElementsMatch(t, []string{"customer_id", "items"}, errorFields(decodeError(t, resp)))

	resp = ts.do(t, http.MethodPost, "/api/invoices", ts.adminToken(t),
		`{"customer_id":"5001","items":[{"description":"","quantity":0,"price":100}]}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.ElementsMatch(t, []string{"items[0].description", "items[0].quantity"}, errorFields(decodeError(t, resp)))

	resp = ts.do(t, http.MethodPost, "/api/invoices", ts.adminToken(t),
		`{"customer_id":"5001","due_date":"next week","items":[{"description":"Design","quantity":1,"price":100}]}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, []string{"due_date"}, errorFields(decodeError(t, resp)))

	resp = ts.do(t, http.MethodPost, "/api/invoices", ts.adminToken(t), `{"customer_id":`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, []string{"request"}, errorFields(decodeError(t, resp)))

	assert.Zero(t, invoices.createCalls)
}

func TestCreateInvoiceServiceErrors(t *testing.T) {
	body := `{"customer_id":"5001","tax_rate":"7.5","items":[{"description":"Design","quantity":2,"price":5000}]}`
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
		field  string
	}{
		{name: "tax rate", err: money.ErrInvalidTaxRate, status: http.StatusBadRequest, typ: "validation_error", field: "tax_rate"},
		{name: "due date", err: invoicedomain.ErrInvalidDueDate, status: http.StatusBadRequest, typ: "validation_error", field: "due_date"},
		{name: "customer", err: invoicedomain.ErrInvalidCustomerID, status: http.StatusBadRequest, typ: "validation_error", field: "customer_id"},
		{name: "persistence", err: fmt.Errorf("insert invoice: %w", errors.New("pq: connection refused")), status: http.StatusInternalServerError, typ: "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, serverDeps{invoices: &fakeInvoiceService{err: tc.err}})

			resp := ts.do(t, http.MethodPost, "/api/invoices", ts.adminToken(t), body)

			require.Equal(t, tc.status, resp.Code)
			payload := decodeError(t, resp)
			assert.Equal(t, tc.typ, payload.Type)
			if tc.field != "" {
				assert.Equal(t, []string{tc.field}, errorFields(payload))
			}
			assert.NotContains(t, resp.Body.String(), "connection refused")
		})
	}
}

func TestListInvoicesPassesFilters(t *testing.T) {
	invoices := &fakeInvoiceService{}
	ts := newTestServer(t, serverDeps{invoices: invoices})

	resp := ts.do(t, http.MethodGet, "/api/invoices?status=SENT&customer_id=5001&start_date=2025-01-01&end_date=2025-01-31&page=2&limit=5", ts.staffToken(t), "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "SENT", invoices.lastList.Status)
	assert.Equal(t, "5001", invoices.lastList.CustomerID)
	assert.Equal(t, 2, invoices.lastList.Page)
	assert.Equal(t, 5, invoices.lastList.Limit)
	require.NotNil(t, invoices.lastList.StartDate)
	require.NotNil(t, invoices.lastList.EndDate)
	assert.Equal(t, 31, invoices.lastList.EndDate.Day())
	assert.Equal(t, 23, invoices.lastList.EndDate.Hour())

	resp = ts.do(t, http.MethodGet, "/api/invoices?page=-1", ts.staffToken(t), "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, []string{"page"}, errorFields(decodeError(t, resp)))
}

func TestMissingInvoiceIsNotFound(t *testing.T) {
	ts := newTestServer(t, serverDeps{invoices: &fakeInvoiceService{err: invoicedomain.ErrInvalidID}})

	resp := ts.do(t, http.MethodGet, "/api/invoices/not-an-id", ts.adminToken(t), "")

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Type)
}

func TestRenderInvoicePDF(t *testing.T) {
	invoices := &fakeInvoiceService{doc: invoicedomain.Document{
		FileName:    "invoice-acme-7001.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.7"),
	}}
	ts := newTestServer(t, serverDeps{invoices: invoices})

	resp := ts.do(t, http.MethodGet, "/api/invoices/7001/pdf", ts.staffToken(t), "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="invoice-acme-7001.pdf"`, resp.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.7", resp.Body.String())
}

func TestRecordPayment(t *testing.T) {
	payments := &fakePaymentService{}
	ts := newTestServer(t, serverDeps{payments: payments})

	resp := ts.do(t, http.MethodPost, "/api/invoices/7001/payments", ts.staffToken(t), `{"amount":2500,"method":" bank transfer ","payment_date":"2025-03-02"}`)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "7001", payments.lastRecord.InvoiceID)
	assert.EqualValues(t, 2500, payments.lastRecord.Amount)
	assert.Equal(t, "bank transfer", payments.lastRecord.Method)
	require.NotNil(t, payments.lastRecord.PaymentDate)
	assert.Equal(t, "2025-03-02", payments.lastRecord.PaymentDate.Format(dateOnlyLayout))

	resp = ts.do(t, http.MethodPost, "/api/invoices/7001/payments", ts.staffToken(t), `{"amount":0}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, []string{"amount"}, errorFields(decodeError(t, resp)))
}

func TestDeletePaymentRequiresAdmin(t *testing.T) {
	payments := &fakePaymentService{}
	ts := newTestServer(t, serverDeps{payments: payments})

	resp := ts.do(t, http.MethodDelete, "/api/payments/9001", ts.staffToken(t), "")
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.do(t, http.MethodDelete, "/api/payments/9001?assigned_to_id=12", ts.adminToken(t), "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "9001", payments.lastDelete.ID)
	assert.Equal(t, "12", payments.lastDelete.AssignedToID)
}

func TestPaymentErrorsMap(t *testing.T) {
	ts := newTestServer(t, serverDeps{payments: &fakePaymentService{err: paymentdomain.ErrNotFound}})

	resp := ts.do(t, http.MethodGet, "/api/invoices/7001/payments", ts.adminToken(t), "")

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListQuotesUsesMetaEnvelope(t *testing.T) {
	quotes := &fakeQuoteService{list: quotedomain.ListQuoteResponse{
		Data: []quotedomain.Quote{{ID: 8001, QuoteNumber: "QT-0001", Status: quotedomain.QuoteStatusDraft}},
		Meta: pagination.PageInfo{Total: 1, Page: 1, Limit: 10, TotalPages: 1},
	}}
	ts := newTestServer(t, serverDeps{quotes: quotes})

	resp := ts.do(t, http.MethodGet, "/api/quotes", ts.staffToken(t), "")
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Contains(t, body, "data")
	assert.JSONEq(t, `{"total":1,"page":1,"limit":10,"total_pages":1}`, string(body["meta"]))
}

func TestQuoteOwnershipForbidden(t *testing.T) {
	ts := newTestServer(t, serverDeps{quotes: &fakeQuoteService{err: authorization.ErrForbidden}})

	resp := ts.do(t, http.MethodDelete, "/api/quotes/8001", ts.staffToken(t), "")

	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "forbidden", decodeError(t, resp).Type)
}

func TestQuoteNumberExhaustionConflicts(t *testing.T) {
	ts := newTestServer(t, serverDeps{quotes: &fakeQuoteService{err: quotedomain.ErrNumberUnavailable}})

	resp := ts.do(t, http.MethodPost, "/api/quotes", ts.staffToken(t),
		`{"customer_id":"5001","items":[{"description":"Audit","quantity":1,"rate":1000,"tax":100}]}`)

	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	ts := newTestServer(t, serverDeps{})

	resp := ts.do(t, http.MethodGet, "/nope", "", "")

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Type)
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(invoicedomain.ErrInvalidStatus)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_status", code)

	typ, code = classifyErrorForLog(customerdomain.ErrInvalidOrganization)
	assert.Equal(t, "not_in_organization", typ)
	assert.Equal(t, "not_in_organization", code)

	typ, code = classifyErrorForLog(nil)
	assert.Empty(t, typ)
	assert.Empty(t, code)
}
