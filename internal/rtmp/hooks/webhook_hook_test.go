package hooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookHookSendsCustomHeaders(t *testing.T) {
	var gotAuth, gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTrace = r.Header.Get("X-Trace-Id")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewWebhookHook("wh-test", srv.URL, 2*time.Second).
		SetHeaders(map[string]string{"Authorization": "Bearer token"}).
		AddHeader("X-Trace-Id", "abc123")

	ev := *NewEvent(EventInvokeFailed).WithApp("echo")
	if err := h.Execute(context.Background(), ev); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("expected Authorization header from SetHeaders, got %q", gotAuth)
	}
	if gotTrace != "abc123" {
		t.Fatalf("expected X-Trace-Id header from AddHeader, got %q", gotTrace)
	}
}
