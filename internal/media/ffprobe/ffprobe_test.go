package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestReportSeconds(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   float64
	}{
		{"container", Report{Format: Format{Duration: "123.45"}}, 123.45},
		{"longest audio stream", Report{Streams: []Stream{
			{CodecType: "audio", Duration: "10.5"},
			{CodecType: "Audio", Duration: "12.25"},
			{CodecType: "video", Duration: "99"},
		}}, 12.25},
		{"not available", Report{Format: Format{Duration: "N/A"}}, 0},
		{"empty", Report{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.Seconds(); got != tt.want {
				t.Fatalf("Seconds() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := (Report{Format: Format{Duration: "bad"}}).Seconds(); !math.IsNaN(got) {
		t.Fatalf("expected NaN for malformed duration, got %v", got)
	}
}

func TestReportAudio(t *testing.T) {
	report := Report{Streams: []Stream{{Index: 0, CodecType: "video"}, {Index: 1, CodecType: "audio"}, {Index: 2, CodecType: "AUDIO"}}}
	audio := report.Audio()
	if len(audio) != 2 || audio[0].Index != 1 || audio[1].Index != 2 {
		t.Fatalf("unexpected audio streams: %+v", audio)
	}
}

func TestProbeWithRunner(t *testing.T) {
	var gotArgs []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffprobe" {
			t.Fatalf("unexpected binary %q", name)
		}
		gotArgs = args
		return []byte(`{"streams":[{"index":0,"codec_type":"audio","codec_name":"mp3"}],"format":{"duration":"61.500000","format_name":"mp3"}}`), nil
	}
	report, err := Probe(context.Background(), runner, "", "/tmp/a.mp3")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if report.Seconds() != 61.5 || len(report.Audio()) != 1 || report.Format.Name != "mp3" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !slices.Contains(gotArgs, entries) {
		t.Fatalf("expected -show_entries %q in %v", entries, gotArgs)
	}
	if gotArgs[len(gotArgs)-1] != "/tmp/a.mp3" || gotArgs[len(gotArgs)-2] != "--" {
		t.Fatalf("expected path after --, got %v", gotArgs)
	}
}

func TestProbeErrors(t *testing.T) {
	if _, err := Probe(context.Background(), nil, "", " "); err == nil {
		t.Fatal("expected empty path error")
	}

	failing := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	if _, err := Probe(context.Background(), failing, "ffprobe", "x.mp3"); err == nil || !strings.Contains(err.Error(), "exit status 1") {
		t.Fatalf("expected runner error, got %v", err)
	}

	garbage := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("not json"), nil
	}
	if _, err := Probe(context.Background(), garbage, "ffprobe", "x.mp3"); err == nil || !strings.Contains(err.Error(), "decode report") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestProbeStubBinary(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\necho '{\"streams\":[],\"format\":{\"duration\":\"5.0\"}}'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	report, err := Probe(context.Background(), nil, stub, filepath.Join(dir, "in.wav"))
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if report.Seconds() != 5 {
		t.Fatalf("expected 5s, got %v", report.Seconds())
	}
}
