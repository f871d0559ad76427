package logging

import "strings"

// ProgressSampler suppresses repetitive per-chunk progress logs while still
// emitting when the stage changes or completion crosses a bucket boundary.
// It is safe for use by a single goroutine; callers that report from a
// worker pool serialize access themselves.
type ProgressSampler struct {
	bucketSize float64
	lastStage  string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the completion
// percentage crosses bucket boundaries (default 10%) or when the stage changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether progress of done out of total items in stage is
// worth a log line. The final item always logs. A non-positive total means
// the amount of work is unknown and only stage changes emit.
func (s *ProgressSampler) ShouldLog(done, total int, stage string) bool {
	if s == nil {
		return true
	}
	stage = strings.TrimSpace(stage)
	emit := false
	if stage != "" && stage != s.lastStage {
		s.lastStage = stage
		s.lastBucket = -1
		emit = true
	}
	if total <= 0 || done < 0 {
		return emit
	}
	if done >= total {
		bucket := int(100 / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			return true
		}
		return emit
	}
	percent := float64(done) / float64(total) * 100
	if bucket := int(percent / s.bucketSize); bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset clears the sampler state before a new stage run.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStage = ""
	s.lastBucket = -1
}
