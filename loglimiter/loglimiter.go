// evs-recorder - accumulate event camera output into fixed length frames
//  Copyright (C) 2025, The OpenEVS Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package loglimiter

import (
	"log"

	"github.com/juju/ratelimit"
)

// Limiter rate-limits a stream of log lines with a token bucket. A busy
// sensor can finalize hundreds of windows per second; the per-window stats
// line goes through a Limiter so the console stays readable. Suppressed
// lines are counted and reported when logging resumes.
//
// Limiter is not safe for concurrent use; each logging goroutine gets its
// own.
type Limiter struct {
	bucket     *ratelimit.Bucket
	suppressed int64
}

// New returns a limiter that lets through linesPerSecond lines on average,
// with bursts of up to burst lines.
func New(linesPerSecond float64, burst int64) *Limiter {
	return NewWithClock(linesPerSecond, burst, nil)
}

// NewWithClock is like New but with an injectable clock for testing. A nil
// clock means the wall clock.
func NewWithClock(linesPerSecond float64, burst int64, clock ratelimit.Clock) *Limiter {
	return &Limiter{
		bucket: ratelimit.NewBucketWithRateAndClock(linesPerSecond, burst, clock),
	}
}

// Printf logs like log.Printf unless the rate limit is exceeded, in which
// case the line is dropped.
func (l *Limiter) Printf(format string, v ...interface{}) {
	if l.bucket.TakeAvailable(1) == 0 {
		l.suppressed++
		return
	}
	if l.suppressed > 0 {
		log.Printf("(%d log lines suppressed)", l.suppressed)
		l.suppressed = 0
	}
	log.Printf(format, v...)
}
