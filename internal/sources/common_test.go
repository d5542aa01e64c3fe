package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoRequestClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   bool
		transient bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: true, transient: true},
		{name: "server error", status: http.StatusBadGateway, wantErr: true, transient: true},
		{name: "bad request", status: http.StatusBadRequest, wantErr: true, transient: false},
		{name: "not found", status: http.StatusNotFound, wantErr: true, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			resp, err := doRequest(context.Background(), srv.Client(), newBreaker(tt.name), req)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				resp.Body.Close()
				return
			}
			if err == nil {
				t.Fatalf("expected an error for status %d", tt.status)
			}
			if got := errors.Is(err, ErrTransient); got != tt.transient {
				t.Fatalf("transient classification for status %d: got %v, want %v", tt.status, got, tt.transient)
			}
		})
	}
}

func TestDoRequestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = doRequest(context.Background(), http.DefaultClient, newBreaker("transport"), req)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("transport error should be transient, got %v", err)
	}
}
