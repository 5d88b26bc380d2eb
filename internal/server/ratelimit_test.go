package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/smallbiznis/billdesk/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriteLimiter struct {
	decision *ratelimit.Decision
	err      error
	orgs     []string
}

func (f *fakeWriteLimiter) Enabled() bool { return true }

func (f *fakeWriteLimiter) Allow(_ context.Context, orgID string) (*ratelimit.Decision, error) {
	f.orgs = append(f.orgs, orgID)
	if f.err != nil {
		return nil, f.err
	}
	return f.decision, nil
}

func TestWriteRateLimitDeniesWithRetryAfter(t *testing.T) {
	customers := &fakeCustomerService{}
	limiter := &fakeWriteLimiter{decision: &ratelimit.Decision{Allowed: false, Limit: 10, RetryAfter: 1500 * time.Millisecond}}
	ts := newTestServer(t, serverDeps{customers: customers, limiter: limiter})

	resp := ts.do(t, http.MethodPost, "/api/customers", ts.adminToken(t), `{"name":"Acme"}`)

	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "2", resp.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, resp).Type)
	assert.Equal(t, []string{testOrgID.String()}, limiter.orgs)
	assert.Empty(t, customers.created)
}

func TestWriteRateLimitDefaultsRetryAfter(t *testing.T) {
	customers := &fakeCustomerService{}
	limiter := &fakeWriteLimiter{decision: &ratelimit.Decision{Allowed: false}}
	ts := newTestServer(t, serverDeps{customers: customers, limiter: limiter})

	resp := ts.do(t, http.MethodDelete, "/api/customers/5001", ts.adminToken(t), "")

	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "1", resp.Header().Get("Retry-After"))
	assert.Zero(t, customers.deleteCalls)
}

func TestWriteRateLimitAllowedSetsHeaders(t *testing.T) {
	customers := &fakeCustomerService{}
	limiter := &fakeWriteLimiter{decision: &ratelimit.Decision{Allowed: true, Limit: 10, Remaining: 7}}
	ts := newTestServer(t, serverDeps{customers: customers, limiter: limiter})

	resp := ts.do(t, http.MethodPost, "/api/customers", ts.staffToken(t), `{"name":"Acme"}`)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "10", resp.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "7", resp.Header().Get("X-RateLimit-Remaining"))
	assert.Empty(t, resp.Header().Get("Retry-After"))
	assert.Len(t, customers.created, 1)
}

func TestWriteRateLimitBackendFailure(t *testing.T) {
	customers := &fakeCustomerService{}
	limiter := &fakeWriteLimiter{err: errors.New("redis down")}
	ts := newTestServer(t, serverDeps{customers: customers, limiter: limiter})

	resp := ts.do(t, http.MethodPost, "/api/customers", ts.adminToken(t), `{"name":"Acme"}`)

	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "service_unavailable", decodeError(t, resp).Type)
	assert.Empty(t, customers.created)
}

func TestWriteRateLimitSkipsReads(t *testing.T) {
	limiter := &fakeWriteLimiter{decision: &ratelimit.Decision{Allowed: false}}
	ts := newTestServer(t, serverDeps{customers: &fakeCustomerService{}, limiter: limiter})

	resp := ts.do(t, http.MethodGet, "/api/customers", ts.adminToken(t), "")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, limiter.orgs)
}
