package models

import "time"

// Timestamp is microseconds since the Unix epoch.
type Timestamp int64

const (
	secondsPerDay   = 86400
	microsPerSecond = 1_000_000
)

func TimestampFrom(t time.Time) Timestamp { return Timestamp(t.UnixMicro()) }

func TimestampFromSeconds(s int64) Timestamp { return Timestamp(s * microsPerSecond) }

func (t Timestamp) Time() time.Time { return time.UnixMicro(int64(t)).UTC() }

// Seconds truncates toward negative infinity.
func (t Timestamp) Seconds() int64 { return floorDiv(int64(t), microsPerSecond) }

// DayWindow returns the inclusive second range [start, start+86399] of the UTC day holding t.
func (t Timestamp) DayWindow() (start, end int64) {
	start = floorDiv(t.Seconds(), secondsPerDay) * secondsPerDay
	return start, start + secondsPerDay - 1
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
