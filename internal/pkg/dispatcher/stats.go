package dispatcher

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fixmarket/corelink/internal/pkg/cache"
)

const (
	workerAlivePrefix = "worker:alive:"
	processedKey      = "dispatch:processed"
	errorsKey         = "dispatch:errors"

	heartbeatTTL = 30 * time.Second
)

// All stats are best effort: a cache outage must never interfere with
// queue processing.

func recordHeartbeat(workerID string) {
	if err := cache.Set(workerAlivePrefix+workerID, time.Now().UTC().Format(time.RFC3339), heartbeatTTL); err != nil {
		log.Debugf("[Dispatcher] Heartbeat for %s not recorded: %v", workerID, err)
	}
}

func countProcessed() {
	if _, err := cache.Incr(processedKey); err != nil {
		log.Debugf("[Dispatcher] Processed counter not updated: %v", err)
	}
}

func countError() {
	if _, err := cache.Incr(errorsKey); err != nil {
		log.Debugf("[Dispatcher] Error counter not updated: %v", err)
	}
}

// Stats is the operator-facing snapshot served by the admin API.
type Stats struct {
	Workers   []string `json:"workers"`
	Processed int64    `json:"processed"`
	Errors    int64    `json:"errors"`
}

// SnapshotStats reads the live worker heartbeats and dispatch counters.
func SnapshotStats() Stats {
	stats := Stats{Workers: []string{}}

	keys, err := cache.Keys(workerAlivePrefix + "*")
	if err != nil {
		log.Warnf("[Dispatcher] Could not list worker heartbeats: %v", err)
	}
	for _, key := range keys {
		stats.Workers = append(stats.Workers, key[len(workerAlivePrefix):])
	}

	if raw, err := cache.Get(processedKey); err == nil {
		stats.Processed, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw, err := cache.Get(errorsKey); err == nil {
		stats.Errors, _ = strconv.ParseInt(raw, 10, 64)
	}
	return stats
}
