package subtitles_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/subtitles"
)

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{-3, "00:00:00,000"},
		{5.123, "00:00:05,123"},
		{61.5, "00:01:01,500"},
		{3723.0449, "01:02:03,044"},
	}
	for _, tc := range cases {
		if got := subtitles.FormatTimestamp(tc.seconds); got != tc.want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestParseTimestampRoundTrip(t *testing.T) {
	for _, value := range []string{"00:00:00,000", "00:01:01,500", "12:34:56,789"} {
		seconds, err := subtitles.ParseTimestamp(value)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", value, err)
		}
		if got := subtitles.FormatTimestamp(seconds); got != value {
			t.Fatalf("round trip %q -> %v -> %q", value, seconds, got)
		}
	}
	for _, bad := range []string{"1:02:03,000", "00:61:00,000", "00:00:00.000", ""} {
		if _, err := subtitles.ParseTimestamp(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestWriteSRTAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.srt")
	entries := []subtitles.Entry{
		{Index: 1, Start: 0.5, End: 2, Text: "hello"},
		{Index: 2, Start: 2.05, End: 4, Text: "world"},
	}
	if err := subtitles.WriteSRT(path, entries); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	want := "1\n00:00:00,500 --> 00:00:02,000\nhello\n\n2\n00:00:02,050 --> 00:00:04,000\nworld\n\n"
	if string(data) != want {
		t.Fatalf("unexpected srt:\n%s", data)
	}

	v, err := subtitles.ValidateSRT(path)
	if err != nil {
		t.Fatalf("ValidateSRT: %v", err)
	}
	if !v.Valid() || v.Entries != 2 || v.End != 4 {
		t.Fatalf("unexpected validation: %+v", v)
	}
}

func TestValidateSRTReportsIssues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.srt")
	body := strings.Join([]string{
		"1",
		"00:00:01,000 --> 00:00:00,500",
		"backwards",
		"",
		"3",
		"00:00:02,000 -> 00:00:03,000",
		"bad arrow",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}
	v, err := subtitles.ValidateSRT(path)
	if err != nil {
		t.Fatalf("ValidateSRT: %v", err)
	}
	if v.Valid() || len(v.Issues) != 3 {
		t.Fatalf("expected three issues, got %+v", v.Issues)
	}
	if v.Issues[0].Line != 2 || !strings.Contains(v.Issues[0].Message, "not after start") {
		t.Fatalf("unexpected first issue: %+v", v.Issues[0])
	}
}
