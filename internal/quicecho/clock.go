// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import "time"

// Clock yields monotonic nanosecond timestamps. The QUIC and TLS state
// machines derive RTT and loss-detection timers from differences of these
// values, so wall-clock adjustments must never be observable through it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// SystemClock is the process-wide monotonic clock used by the server.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time {
	return time.Now()
}
