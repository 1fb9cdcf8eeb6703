package streaming

import (
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/auralis/auralis/internal/constants"
)

// streamPermits is the one process-wide semaphore bounding concurrent
// sessions to MAX_CONCURRENT_STREAMS. A session driver MUST acquire this
// singleton, never construct a private semaphore.Weighted, or the cap
// would only bind within one session instead of across the process. The
// cap defaults to the constants package but can be overridden once, at
// startup, via ConfigureMaxConcurrentStreams before the first session
// acquires a permit.
var (
	permitOnce           sync.Once
	streamPermits        *semaphore.Weighted
	maxConcurrentStreams = constants.MaxConcurrentStreams
)

// ConfigureMaxConcurrentStreams overrides the concurrency cap from
// configuration. It must be called before the first session acquires a
// permit; calls after that have no effect.
func ConfigureMaxConcurrentStreams(n int) {
	maxConcurrentStreams = n
}

func getStreamPermits() *semaphore.Weighted {
	permitOnce.Do(func() {
		streamPermits = semaphore.NewWeighted(int64(maxConcurrentStreams))
	})
	return streamPermits
}
