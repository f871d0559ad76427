package services_test

import (
	"errors"
	"strings"
	"testing"

	"loom/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "split", "export", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"split", "export", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestExitHintMapping(t *testing.T) {
	cases := []struct {
		marker error
		want   string
	}{
		{services.ErrConfiguration, "config"},
		{services.ErrNotFound, "input path"},
		{services.ErrExternalTool, "ffmpeg"},
		{services.ErrValidation, "loom combine"},
		{services.ErrTimeout, "resumed"},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "stage", "op", "msg", nil)
		if hint := services.ExitHint(err); !strings.Contains(hint, tc.want) {
			t.Fatalf("hint for %v = %q, want substring %q", tc.marker, hint, tc.want)
		}
	}
	if hint := services.ExitHint(nil); hint != "" {
		t.Fatalf("expected empty hint for nil error, got %q", hint)
	}
}
