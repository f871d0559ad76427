package transcribe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want failureClass
	}{
		{errors.New("googleapi: Error 503"), failureOverload},
		{errors.New("The model is overloaded"), failureOverload},
		{errors.New("UNAVAILABLE: try later"), failureOverload},
		{errors.New("Error 504"), failureTimeout},
		{errors.New("context deadline exceeded"), failureTimeout},
		{errors.New("read timeout"), failureTimeout},
		{errors.New("permission denied"), failureOther},
		{nil, failureOther},
	}
	for _, tc := range cases {
		if got := classify(tc.err); got != tc.want {
			t.Fatalf("classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	low := New(nil, Options{}, WithRand(func() float64 { return 0 }))
	high := New(nil, Options{}, WithRand(func() float64 { return 0.999999 }))

	cases := []struct {
		class    failureClass
		attempt  int
		min, max float64
	}{
		{failureOverload, 0, 5, 9},
		{failureOverload, 2, 29, 33},
		{failureTimeout, 1, 7, 10},
		{failureOther, 3, 24, 26},
	}
	for _, tc := range cases {
		lo := low.backoffDelay(tc.class, tc.attempt).Seconds()
		hi := high.backoffDelay(tc.class, tc.attempt).Seconds()
		if lo < tc.min-1e-6 || hi > tc.max+1e-6 || lo > hi {
			t.Fatalf("%v attempt %d: got [%v, %v] want within [%v, %v]", tc.class, tc.attempt, lo, hi, tc.min, tc.max)
		}
	}
}

func TestRegionRotatorWraps(t *testing.T) {
	r := newRegionRotator([]string{"a", "b", "c"})
	got := []string{r.next(), r.next(), r.next(), r.next()}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation %d: got %q want %q", i, got[i], want[i])
		}
	}
	if (&regionRotator{}).next() != "" {
		t.Fatal("expected empty region when none are configured")
	}
}

func TestSleepHonoursCancellation(t *testing.T) {
	o := New(nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := o.sleep(context.Background(), 0); err != nil {
		t.Fatalf("zero delay should not fail: %v", err)
	}
}

func TestArtifactHelpers(t *testing.T) {
	if got := ArtifactPath("/tmp/out", "/audio/chunk_007.mp3"); got != "/tmp/out/chunk_007.txt" {
		t.Fatalf("unexpected artifact path %q", got)
	}
	if !ValidContent("Timestamped Transcript:\n[00:01.000] hi") {
		t.Fatal("expected timestamped transcript to be valid")
	}
	if ValidContent("Transcript:\nhi") {
		t.Fatal("expected missing timestamped section to be invalid")
	}
	marker := FailureMarker("chunk_001.mp3", 5, errors.New("boom"))
	if marker != "Error processing chunk_001.mp3 after 5 attempts: boom\n" {
		t.Fatalf("unexpected marker %q", marker)
	}
	if ValidContent(marker) {
		t.Fatal("failure marker must be invalid")
	}
}
