// Package billing implements the Limit Gate: a synchronous pre-flight
// check against the external billing service before a tenant is
// allowed to consume a metered resource (documents, websites,
// daily_chats, monthly_chats).
//
// Billing should prevent abuse, not prevent the business from
// operating when billing is down, so most failure modes here fail
// open. A circuit breaker sits in front of the HTTP call so a billing
// outage degrades into fast local fail-opens instead of every request
// blocking for the full 5s timeout.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/webingest/core/internal/errkind"
)

// ResourceType names one of the metered resources the billing service
// tracks usage against.
type ResourceType string

const (
	ResourceDocuments    ResourceType = "documents"
	ResourceWebsites     ResourceType = "websites"
	ResourceDailyChats   ResourceType = "daily_chats"
	ResourceMonthlyChats ResourceType = "monthly_chats"
)

// Decision is the outcome of a Limit Gate check.
type Decision struct {
	Allowed      bool
	CurrentUsage int
	Limit        int
	Remaining    int
	Reason       string
}

type checkResponse struct {
	Allowed      bool   `json:"allowed"`
	CurrentUsage int    `json:"current_usage"`
	Limit        int    `json:"limit"`
	Remaining    int    `json:"remaining"`
	Reason       string `json:"reason"`
}

// Gate checks a tenant's remaining quota before heavy work begins.
type Gate struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// New builds a Gate against the billing service at baseURL. The
// breaker trips after 5 consecutive failures and probes again after
// 30s.
func New(baseURL string) *Gate {
	settings := gobreaker.Settings{
		Name:        "billing-limit-gate",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A 401 means the billing service is up and rejecting this
		// caller's credentials, not that billing is unavailable; it must
		// never count toward tripping the breaker or be shadowed by an
		// open breaker's failOpen path once enough of them accumulate.
		IsSuccessful: func(err error) bool {
			_, isAuthFailure := err.(authFailure)
			return err == nil || isAuthFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{"breaker": name, "from": from, "to": to}).Warn("billing circuit breaker state change")
		},
	}
	return &Gate{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

// CanIngestWebsite checks the websites quota via the dedicated
// can-ingest-website endpoint.
func (g *Gate) CanIngestWebsite(ctx context.Context, tenantID, token string) (Decision, error) {
	return g.check(ctx, "/api/v1/restrictions/can-ingest-website", tenantID, token)
}

// Check is the general-purpose pre-flight for a metered resource.
func (g *Gate) Check(ctx context.Context, resource ResourceType, tenantID, token string) (Decision, error) {
	return g.check(ctx, "/api/v1/usage/check/"+string(resource), tenantID, token)
}

// check performs the HTTP round-trip and maps the response into a
// Decision per spec §4.10. A returned error means "reject the
// caller" (auth failure); every other failure mode is folded into a
// fail-open Decision so callers don't have to special-case billing
// outages.
func (g *Gate) check(ctx context.Context, path, tenantID, token string) (Decision, error) {
	result, breakerErr := g.breaker.Execute(func() (interface{}, error) {
		return g.doRequest(ctx, path, tenantID, token)
	})
	if breakerErr != nil {
		if breakerErr == gobreaker.ErrOpenState || breakerErr == gobreaker.ErrTooManyRequests {
			return failOpen("billing_circuit_open"), nil
		}
		if authErr, ok := breakerErr.(authFailure); ok {
			return Decision{}, errkind.Wrap("billing.check", errkind.AuthFailure, authErr.err)
		}
		logrus.WithError(breakerErr).Warn("billing limit gate call failed, failing open")
		return failOpen(fmt.Sprintf("billing_unavailable: %v", breakerErr)), nil
	}
	return result.(Decision), nil
}

type authFailure struct{ err error }

func (a authFailure) Error() string { return a.err.Error() }

func (g *Gate) doRequest(ctx context.Context, path, tenantID, token string) (Decision, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("build billing request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("billing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body checkResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return Decision{}, fmt.Errorf("decode billing response: %w", err)
		}
		return Decision{
			Allowed:      body.Allowed,
			CurrentUsage: body.CurrentUsage,
			Limit:        body.Limit,
			Remaining:    body.Remaining,
			Reason:       body.Reason,
		}, nil
	case resp.StatusCode == http.StatusUnauthorized:
		// Returning this as a plain error (not a Decision) tells check
		// to reject the caller instead of failing open.
		return Decision{}, authFailure{err: fmt.Errorf("billing service rejected credentials")}
	case resp.StatusCode == http.StatusNotFound:
		return failOpen("billing_service_endpoint_not_found"), nil
	default:
		return failOpen(fmt.Sprintf("billing_unexpected_status_%d", resp.StatusCode)), nil
	}
}

func failOpen(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}
