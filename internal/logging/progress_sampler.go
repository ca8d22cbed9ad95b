package logging

// ProgressSampler decides which progress reports deserve an info-level log
// line. It emits once per percentage bucket and whenever the message changes
// after a bucket was already reported.
type ProgressSampler struct {
	bucketSize  int
	lastBucket  int
	lastMessage string
}

// NewProgressSampler returns a sampler with bucketSize-wide buckets (default 10).
func NewProgressSampler(bucketSize int) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether percent/message should be logged. A nil sampler
// logs everything.
func (s *ProgressSampler) ShouldLog(percent int, message string) bool {
	if s == nil {
		return true
	}
	percent = max(0, min(100, percent))
	bucket := percent / s.bucketSize
	emit := bucket > s.lastBucket
	if bucket < s.lastBucket {
		// progress went backwards, typically a retried step
		emit = true
	}
	if message != "" && message != s.lastMessage && s.lastBucket >= 0 {
		emit = true
	}
	if emit {
		s.lastBucket = bucket
		s.lastMessage = message
	}
	return emit
}

// Reset forgets prior reports.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
	s.lastMessage = ""
}
