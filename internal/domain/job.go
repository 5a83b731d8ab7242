package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// CrawlJob is one unit of scheduled work: fetch one provider/query pair.
type CrawlJob struct {
	ID          string
	Type        string
	Payload     json.RawMessage
	Fingerprint string
	Status      JobStatus
	RunAt       time.Time
	Attempts    int
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobFingerprint is the deterministic key used for idempotent enqueue: the
// periodic trigger must not queue a (type, payload) pair that is already
// queued or running.
func JobFingerprint(jobType string, payload json.RawMessage) string {
	h := sha1.New()
	h.Write([]byte(jobType))
	h.Write([]byte{0})
	// payload is produced by json.Marshal on our side, so byte-stable
	if len(payload) > 0 {
		var compact map[string]any
		if err := json.Unmarshal(payload, &compact); err == nil {
			if b, err := json.Marshal(compact); err == nil {
				h.Write(b)
			} else {
				h.Write(payload)
			}
		} else {
			h.Write(payload)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CrawlLog is a write-once audit record of one provider call.
type CrawlLog struct {
	ID        int64
	JobID     string
	Provider  string
	OK        bool
	HTTPCode  int
	LatencyMS int64
	Error     *string
	CreatedAt time.Time
}

// ProviderHealth aggregates CrawlLog rows for the ops surface.
type ProviderHealth struct {
	Provider     string
	Calls        int64
	Failures     int64
	SuccessRate  float64
	AvgLatencyMS float64
	LastCall     *time.Time
}
