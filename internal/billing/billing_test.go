package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webingest/core/internal/errkind"
)

func TestCheckPassesThroughAllowedDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"allowed":true,"current_usage":3,"limit":10,"remaining":7,"reason":"ok"}`))
	}))
	defer srv.Close()

	g := New(srv.URL)
	d, err := g.Check(context.Background(), ResourceDocuments, "tenant-1", "tok")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !d.Allowed || d.CurrentUsage != 3 || d.Limit != 10 || d.Remaining != 7 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestCheckPassesThroughDeniedDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"allowed":false,"current_usage":10,"limit":10,"remaining":0,"reason":"quota_exceeded"}`))
	}))
	defer srv.Close()

	g := New(srv.URL)
	d, err := g.Check(context.Background(), ResourceWebsites, "tenant-1", "tok")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected Allowed=false, got %+v", d)
	}
}

func TestCheckRejectsOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := New(srv.URL)
	_, err := g.Check(context.Background(), ResourceDocuments, "tenant-1", "bad-tok")
	if err == nil {
		t.Fatalf("expected error on 401, got nil")
	}
	if errkind.Of(err) != errkind.AuthFailure {
		t.Fatalf("expected AuthFailure, got %v", errkind.Of(err))
	}
}

func TestCheckRejectsOn401EvenAfterManyConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := New(srv.URL)
	// More than the breaker's trip threshold: if 401s counted as
	// breaker failures, later calls would flip to ErrOpenState and
	// fail open instead of rejecting.
	for i := 0; i < 10; i++ {
		_, err := g.Check(context.Background(), ResourceDocuments, "tenant-1", "bad-tok")
		if err == nil {
			t.Fatalf("call %d: expected error on 401, got nil", i)
		}
		if errkind.Of(err) != errkind.AuthFailure {
			t.Fatalf("call %d: expected AuthFailure, got %v", i, errkind.Of(err))
		}
	}
}

func TestCheckFailsOpenOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := New(srv.URL)
	d, err := g.Check(context.Background(), ResourceDocuments, "tenant-1", "tok")
	if err != nil {
		t.Fatalf("Check() error = %v, want nil (fail-open)", err)
	}
	if !d.Allowed || d.Reason != "billing_service_endpoint_not_found" {
		t.Fatalf("unexpected fail-open decision: %+v", d)
	}
}

func TestCheckFailsOpenOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := New(srv.URL)
	d, err := g.Check(context.Background(), ResourceDocuments, "tenant-1", "tok")
	if err != nil {
		t.Fatalf("Check() error = %v, want nil (fail-open)", err)
	}
	if !d.Allowed {
		t.Fatalf("expected fail-open Allowed=true, got %+v", d)
	}
}

func TestCheckFailsOpenOnConnectError(t *testing.T) {
	// No server listening on this URL at all.
	g := New("http://127.0.0.1:1")
	d, err := g.Check(context.Background(), ResourceDocuments, "tenant-1", "tok")
	if err != nil {
		t.Fatalf("Check() error = %v, want nil (fail-open)", err)
	}
	if !d.Allowed {
		t.Fatalf("expected fail-open Allowed=true on connect error, got %+v", d)
	}
}
