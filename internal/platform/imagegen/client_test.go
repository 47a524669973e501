package imagegen

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/higgsflow/catalog-sync/internal/domain"
)

type stubDoer struct {
	responses []*http.Response
	errs      []error
	requests  []*http.Request
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	index := len(s.requests)
	s.requests = append(s.requests, req)
	var resp *http.Response
	var err error
	if index < len(s.responses) {
		resp = s.responses[index]
	}
	if index < len(s.errs) {
		err = s.errs[index]
	}
	return resp, err
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func noSleep(c *Client) {
	c.sleep = func(context.Context, time.Duration) error { return nil }
}

func TestGenerateImagesSuccess(t *testing.T) {
	doer := &stubDoer{responses: []*http.Response{
		jsonResponse(http.StatusOK, `{"primary":"https://img/p.png","technical":"https://img/t.png","application":"https://img/a.png","gallery":["https://img/g1.png"]}`),
	}}
	client := NewClient("https://images.example.com/generate", "tok", time.Second, WithHTTPDoer(doer), noSleep)

	images, err := client.GenerateImages(context.Background(), domain.InternalProduct{ID: "p1", Name: "Ball Bearing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if images.Primary != "https://img/p.png" || len(images.Gallery) != 1 {
		t.Fatalf("unexpected image set: %+v", images)
	}

	req := doer.requests[0]
	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Fatalf("expected bearer token header, got %q", got)
	}
	var payload map[string]any
	body, _ := io.ReadAll(req.Body)
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload["productId"] != "p1" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestGenerateImagesRetriesTransientFailures(t *testing.T) {
	doer := &stubDoer{responses: []*http.Response{
		jsonResponse(http.StatusServiceUnavailable, `overloaded`),
		jsonResponse(http.StatusOK, `{"primary":"https://img/p.png"}`),
	}}
	client := NewClient("https://images.example.com/generate", "", time.Second, WithHTTPDoer(doer), WithAttempts(2), noSleep)

	images, err := client.GenerateImages(context.Background(), domain.InternalProduct{ID: "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if images.Primary == "" {
		t.Fatal("expected primary image after retry")
	}
	if len(doer.requests) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(doer.requests))
	}
}

func TestGenerateImagesDoesNotRetryClientErrors(t *testing.T) {
	doer := &stubDoer{responses: []*http.Response{
		jsonResponse(http.StatusBadRequest, `bad payload`),
		jsonResponse(http.StatusOK, `{"primary":"https://img/p.png"}`),
	}}
	client := NewClient("https://images.example.com/generate", "", time.Second, WithHTTPDoer(doer), WithAttempts(3), noSleep)

	if _, err := client.GenerateImages(context.Background(), domain.InternalProduct{ID: "p1"}); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if len(doer.requests) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(doer.requests))
	}
}

func TestGenerateImagesRequiresEndpoint(t *testing.T) {
	client := NewClient("", "", time.Second)
	if _, err := client.GenerateImages(context.Background(), domain.InternalProduct{ID: "p1"}); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
