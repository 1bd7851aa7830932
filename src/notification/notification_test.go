package notification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))

	long := strings.Repeat("é", 250)
	got := Truncate(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, 203, len([]rune(got)))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify("PresentInk", "Screenshot taken and copied to clipboard"))
}

func TestFyneNotifierWithoutApp(t *testing.T) {
	assert.Error(t, FyneNotifier{}.Notify("a", "b"))
}
