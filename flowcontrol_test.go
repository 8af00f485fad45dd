package h2wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowControlWindow_Consume(t *testing.T) {
	w := NewFlowControlWindow(100)

	assert.Equal(t, int64(60), w.Consume(60))
	assert.Equal(t, int64(40), w.Size())

	assert.Equal(t, int64(40), w.Consume(100), "a short grant never exceeds what remains")
	assert.Equal(t, int64(0), w.Size())

	assert.Equal(t, int64(0), w.Consume(1), "consuming from an exhausted window grants nothing and never errors")
}

func TestFlowControlWindow_Increase(t *testing.T) {
	w := NewFlowControlWindow(0)

	require.NoError(t, w.Increase(50))
	assert.Equal(t, int64(50), w.Size())

	err := w.Increase(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrZeroIncrement)

	w2 := NewFlowControlWindow(MaxWindowSize)
	require.Error(t, w2.Increase(1), "increasing past 2^31-1 is a flow-control error")
}

func TestFlowControlWindow_Decrease_CanGoNegative(t *testing.T) {
	w := NewFlowControlWindow(10)
	w.Decrease(30)
	assert.Equal(t, int64(-20), w.Size())
	assert.False(t, w.HasCapacity())
}

func TestFlowControlWindow_Rescale(t *testing.T) {
	w := NewFlowControlWindow(100)
	w.Consume(90)
	require.Equal(t, int64(10), w.Size())

	require.NoError(t, w.Rescale(200))
	assert.Equal(t, int64(110), w.Size(), "rescale applies the delta, not an absolute reset")

	require.NoError(t, w.Rescale(50))
	assert.Equal(t, int64(-40), w.Size(), "a downward rescale can drive the window negative")
}

func TestFlowControlWindow_ShouldUpdate(t *testing.T) {
	w := NewFlowControlWindow(100)
	assert.False(t, w.ShouldUpdate())

	w.Consume(51)
	assert.True(t, w.ShouldUpdate(), "below half the initial size triggers a refill")

	w.Reset(100)
	assert.False(t, w.ShouldUpdate())
}
