package breaktimer

import (
	"fmt"
	"math"
	"time"
)

// DefaultDuration is the break length when none is configured.
const DefaultDuration = 10 * time.Minute

// Countdown is a pure break countdown.
type Countdown struct {
	Total time.Duration
}

func New(minutes int) Countdown {
	if minutes <= 0 {
		return Countdown{Total: DefaultDuration}
	}
	return Countdown{Total: time.Duration(minutes) * time.Minute}
}

// Remaining is the time left after elapsed, never negative.
func (c Countdown) Remaining(elapsed time.Duration) time.Duration {
	if elapsed >= c.Total {
		return 0
	}
	return c.Total - elapsed
}

func (c Countdown) Done(elapsed time.Duration) bool { return elapsed >= c.Total }

// Format renders d as MM:SS, rounding partial seconds up so the display
// reaches 00:00 only when the break is over.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(math.Ceil(d.Seconds()))
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
