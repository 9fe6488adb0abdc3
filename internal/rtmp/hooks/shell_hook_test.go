package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestShellHookWithCommandPassesEnvAndJSON(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "seen")

	// A shell hook built via the custom-command constructor, writing the
	// SetEnv-supplied EXTRA_VAR, the incoming event's RTMP_APP env var and its
	// stdin JSON body to a file so the test can inspect both SetEnv and
	// SetPassJSON side effects.
	script := "read body; printf '%s|%s|%s' \"$EXTRA_VAR\" \"$RTMP_APP\" \"$body\" > " + marker
	h := NewShellHookWithCommand("sh-test", "/bin/sh", []string{"-c", script}, 2*time.Second).
		SetEnv([]string{"EXTRA_VAR=1"}).
		SetPassJSON(true)

	if h.Type() != "shell" {
		t.Fatalf("expected shell type, got %s", h.Type())
	}
	if h.ID() != "sh-test" {
		t.Fatalf("expected id sh-test, got %s", h.ID())
	}

	ev := *NewEvent(EventRoomCreate).WithApp("chat").WithRoom("_")
	if err := h.Execute(context.Background(), ev); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("reading marker file: %v", err)
	}
	got := string(out)
	if !strings.HasPrefix(got, "1|chat|{") {
		t.Fatalf("expected EXTRA_VAR and RTMP_APP followed by the JSON body, got %q", got)
	}
	if !strings.Contains(got, `"type":"room_create"`) {
		t.Fatalf("expected the stdin JSON body to carry the event type, got %q", got)
	}
}
