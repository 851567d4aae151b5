package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/cosmetica/clinic-booking/internal/reservations"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

type stubReaper struct {
	calls  int
	result *reservations.ReapResult
	err    error
}

func (s *stubReaper) ReapPast(context.Context) (*reservations.ReapResult, error) {
	s.calls++
	return s.result, s.err
}

func httpEvent(t *testing.T, method string, headers map[string]string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(events.APIGatewayV2HTTPRequest{
		RawPath: "/functions/cleanup-past-bookings",
		Headers: headers,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: method, Path: "/functions/cleanup-past-bookings"},
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestHandleScheduledEvent(t *testing.T) {
	reaper := &stubReaper{result: &reservations.ReapResult{DeletedCount: 2, DeletedIDs: []string{"a", "b"}}}
	raw, _ := json.Marshal(events.EventBridgeEvent{Source: "aws.events", DetailType: "Scheduled Event"})

	out, err := handle(context.Background(), reaper, "secret", logging.Discard(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, ok := out.(*reservations.ReapResult)
	if !ok || result.DeletedCount != 2 {
		t.Fatalf("unexpected result %#v", out)
	}
	if reaper.calls != 1 {
		t.Fatalf("expected one reap, got %d", reaper.calls)
	}
}

func TestHandleScheduledEventError(t *testing.T) {
	reaper := &stubReaper{err: errors.New("db down")}
	if _, err := handle(context.Background(), reaper, "", logging.Discard(), json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error so the invocation is retried by the scheduler")
	}
}

func TestHandleHTTPRequiresCronSecret(t *testing.T) {
	reaper := &stubReaper{result: &reservations.ReapResult{DeletedIDs: []string{}, Message: "No past bookings to delete"}}

	out, err := handle(context.Background(), reaper, "secret", logging.Discard(), httpEvent(t, http.MethodPost, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp := out.(events.APIGatewayV2HTTPResponse)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if reaper.calls != 0 {
		t.Fatalf("unauthorized request must not reap")
	}

	out, _ = handle(context.Background(), reaper, "secret", logging.Discard(),
		httpEvent(t, http.MethodGet, map[string]string{"X-Cron-Secret": "secret"}))
	resp = out.(events.APIGatewayV2HTTPResponse)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Body, "No past bookings to delete") {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestHandleHTTPMethods(t *testing.T) {
	reaper := &stubReaper{}
	out, _ := handle(context.Background(), reaper, "", logging.Discard(), httpEvent(t, http.MethodOptions, nil))
	if resp := out.(events.APIGatewayV2HTTPResponse); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", resp.StatusCode)
	}
	out, _ = handle(context.Background(), reaper, "", logging.Discard(), httpEvent(t, http.MethodDelete, nil))
	if resp := out.(events.APIGatewayV2HTTPResponse); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestHandleHTTPReapFailure(t *testing.T) {
	reaper := &stubReaper{err: errors.New("db down")}
	out, err := handle(context.Background(), reaper, "", logging.Discard(), httpEvent(t, http.MethodPost, nil))
	if err != nil {
		t.Fatalf("http failures are reported in the response, got %v", err)
	}
	if resp := out.(events.APIGatewayV2HTTPResponse); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}
