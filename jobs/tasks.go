package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCacheWarm re-primes portal caches for active accounts.
	TaskCacheWarm = "cache:warm"
)

// CacheWarmPayload scopes a warm-up run.
type CacheWarmPayload struct {
	// Resources limits the run to specific resource types; empty means
	// projects and invoices.
	Resources []string `json:"resources,omitempty"`
}

// NewCacheWarmTask constructs an Asynq task for a warm-up run.
func NewCacheWarmTask(payload CacheWarmPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarm, data), nil
}
