package dispatch_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/pulse/pkg/dispatch"
)

func TestBackoffNextInterval(t *testing.T) {
	t.Parallel()

	b := dispatch.Backoff{Initial: 2 * time.Second, Max: time.Minute, Multiplier: 2}
	assert.Zero(t, b.NextInterval(0))
	assert.Equal(t, 2*time.Second, b.NextInterval(1))
	assert.Equal(t, 4*time.Second, b.NextInterval(2))
	assert.Equal(t, 8*time.Second, b.NextInterval(3))
	assert.Equal(t, time.Minute, b.NextInterval(10))

	var zero dispatch.Backoff
	assert.Equal(t, 2*time.Second, zero.NextInterval(1), "zero value uses defaults")
}
