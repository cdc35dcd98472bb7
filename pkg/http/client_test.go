package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendAndParseDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "x" {
			t.Errorf("query not forwarded: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("header not forwarded: %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"value": 42}`)
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	c := NewClient()
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		Headers:     map[string]string{"Authorization": "Bearer tok"},
		QueryParams: map[string][]string{"q": {"x"}},
	}, &out)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.Value != 42 {
		t.Fatalf("value: %d", out.Value)
	}
}

func TestSendAndParseStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "narrative not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient()
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %d", statusErr.StatusCode)
	}
	if statusErr.Detail != "narrative not found" {
		t.Fatalf("detail: %q", statusErr.Detail)
	}
}

func TestSendAndParsePlainTextErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient()
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Detail != "gateway exploded" {
		t.Fatalf("detail: %q", statusErr.Detail)
	}
}
