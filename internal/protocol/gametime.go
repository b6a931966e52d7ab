package protocol

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedGameTime is returned when a reported game time is not HH:MM:SS.
var ErrMalformedGameTime = errors.New("malformed game time")

const gameTimeLayout = "15:04:05"

// FormatGameTime renders an elapsed duration as HH:MM:SS, truncated to whole
// seconds.
func FormatGameTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// ParseGameTime parses a reported game time as a time of day. Anything outside
// 00:00:00-23:59:59 is malformed, including matches that ran past 24 hours.
func ParseGameTime(s string) (time.Duration, error) {
	t, err := time.Parse(gameTimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedGameTime, s)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}
