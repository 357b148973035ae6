package dispatch

import (
	"math/rand/v2"
	"time"

	"github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

const (
	backoffCapSeconds      = 3600
	backoffExponentCeiling = 12
	backoffJitterSeconds   = 7
)

// RetryPolicy maps an attempt number to the next backoff delay and decides
// when a job is exhausted. Both an attempt budget and a wall-clock age limit
// apply: attempt count alone does not bound exposure when delays are long.
type RetryPolicy struct {
	MaxAge time.Duration
}

// NextDelay returns the capped exponential backoff delay for the given
// attempt number: min(1h, 2^min(attempt,12) seconds + jitter of 0..7s).
// The second return value is false once attemptNumber exceeds maxAttempts,
// meaning the job must escalate to failed instead of scheduling another try.
func (p RetryPolicy) NextDelay(attemptNumber, maxAttempts int) (time.Duration, bool) {
	if attemptNumber >= maxAttempts {
		return 0, false
	}

	exponent := attemptNumber
	if exponent < 1 {
		exponent = 1
	}
	if exponent > backoffExponentCeiling {
		exponent = backoffExponentCeiling
	}

	seconds := 1 << exponent
	seconds += rand.IntN(backoffJitterSeconds + 1)
	if seconds > backoffCapSeconds {
		seconds = backoffCapSeconds
	}

	return time.Duration(seconds) * time.Second, true
}

// ShouldEscalate reports whether the job must move to failed rather than be
// rescheduled: either the attempt budget is spent or the job is older than
// the policy's maximum age.
func (p RetryPolicy) ShouldEscalate(job *domain.Job, now time.Time) bool {
	if job.AttemptCount >= job.MaxAttempts {
		return true
	}
	if p.MaxAge > 0 && now.Sub(job.CreatedAt) >= p.MaxAge {
		return true
	}
	return false
}
