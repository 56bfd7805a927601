package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/testutil"
)

func TestAnomalyLimiter_NilWhenDisabled(t *testing.T) {
	l := newAnomalyLimiter(anomalyLimiterConfig{MaxPerLayer: 0})
	assert.Nil(t, l)
	assert.True(t, l.Allow(core.LayerLink, testutil.Base))
	assert.Equal(t, 0, l.Suppressed())
}

func TestAnomalyLimiter_RejectsOverLimit(t *testing.T) {
	l := newAnomalyLimiter(anomalyLimiterConfig{MaxPerLayer: 3, Window: 10 * time.Second})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(core.LayerNetwork, testutil.Base), "line %d is within the limit", i)
	}
	assert.False(t, l.Allow(core.LayerNetwork, testutil.Base))
	assert.Equal(t, 1, l.Suppressed())
}

func TestAnomalyLimiter_LayersIndependent(t *testing.T) {
	l := newAnomalyLimiter(anomalyLimiterConfig{MaxPerLayer: 1, Window: 10 * time.Second})

	assert.True(t, l.Allow(core.LayerLink, testutil.Base))
	assert.False(t, l.Allow(core.LayerLink, testutil.Base))
	assert.True(t, l.Allow(core.LayerTransport, testutil.Base))
}

func TestAnomalyLimiter_WindowRotation(t *testing.T) {
	l := newAnomalyLimiter(anomalyLimiterConfig{MaxPerLayer: 2, Window: time.Second})

	l.Allow(core.LayerLink, testutil.Base)
	l.Allow(core.LayerLink, testutil.Base)
	assert.False(t, l.Allow(core.LayerLink, testutil.Base.Add(500*time.Millisecond)))

	assert.True(t, l.Allow(core.LayerLink, testutil.Base.Add(2*time.Second)))

	// timestamps going backwards stay in the current window
	l.Allow(core.LayerLink, testutil.Base.Add(2*time.Second))
	assert.False(t, l.Allow(core.LayerLink, testutil.Base))
}
