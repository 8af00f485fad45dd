package h2wire

// MaxWindowSize is the largest value a flow-control window may hold,
// 2^31 - 1, per RFC 7540 §6.9.1.
const MaxWindowSize = 1<<31 - 1

// FlowControlWindow is a signed 64-bit byte credit. The signed
// representation sidesteps RFC 7540's requirement that a window may
// legitimately go negative after a SETTINGS-driven rescale — an
// unsigned counter cannot represent that state.
//
// Grounded on original_source/src/http/h2/flow_control.rs; the teacher
// repo has no typed equivalent (its Stream.window is a bare int).
type FlowControlWindow struct {
	initialSize uint32
	current     int64
}

// NewFlowControlWindow starts a window at initialSize.
func NewFlowControlWindow(initialSize uint32) *FlowControlWindow {
	return &FlowControlWindow{initialSize: initialSize, current: int64(initialSize)}
}

// Size returns the current credit, which may be negative.
func (w *FlowControlWindow) Size() int64 { return w.current }

// InitialSize returns the size the window was last rescaled to.
func (w *FlowControlWindow) InitialSize() uint32 { return w.initialSize }

// HasCapacity reports whether any bytes may currently be sent.
func (w *FlowControlWindow) HasCapacity() bool { return w.current > 0 }

// CanSend reports whether n bytes may be sent without exceeding the
// current credit.
func (w *FlowControlWindow) CanSend(n int64) bool { return n <= w.current }

// Consume deducts up to n bytes and returns the amount actually
// granted: min(n, current) when current > 0, otherwise 0. It never
// blocks and never errors — the caller (the connection driver) is
// responsible for waiting on a WINDOW_UPDATE when the grant is less
// than requested.
func (w *FlowControlWindow) Consume(n int64) int64 {
	if w.current <= 0 {
		return 0
	}
	granted := n
	if granted > w.current {
		granted = w.current
	}
	w.current -= granted
	return granted
}

// Increase applies a WINDOW_UPDATE credit. A zero increment or an
// increase that would push current above MaxWindowSize is a
// flow-control error.
func (w *FlowControlWindow) Increase(n uint32) error {
	if n == 0 {
		return ErrZeroIncrement
	}
	if w.current+int64(n) > MaxWindowSize {
		return NewError(ErrCodeFlowControl, KindNone, "window increase by %d overflows 2^31-1", n)
	}
	w.current += int64(n)
	return nil
}

// Decrease unconditionally deducts n, which may drive current
// negative — this happens when data already credited under a larger
// initial window arrives after the peer lowers INITIAL_WINDOW_SIZE.
func (w *FlowControlWindow) Decrease(n int64) {
	w.current -= n
}

// Rescale applies the delta between newInitial and the window's
// previous initial size to current, per RFC 7540 §6.9.2, failing with
// a flow-control error if the result would overflow MaxWindowSize.
func (w *FlowControlWindow) Rescale(newInitial uint32) error {
	delta := int64(newInitial) - int64(w.initialSize)
	next := w.current + delta
	if next > MaxWindowSize {
		return NewError(ErrCodeFlowControl, KindNone, "rescale to %d overflows 2^31-1", newInitial)
	}
	w.current = next
	w.initialSize = newInitial
	return nil
}

// ShouldUpdate reports whether the window has dropped below half its
// initial size and a WINDOW_UPDATE should be sent to top it back up.
// Mirrors original_source's should_send_window_update threshold
// exactly (SPEC_FULL.md §12).
func (w *FlowControlWindow) ShouldUpdate() bool {
	return w.current < int64(w.initialSize)/2
}

// Reset reinitializes the window to size, discarding any accumulated
// negative credit. The DATA receive path calls it after sending the
// WINDOW_UPDATE that restores the consumed credit.
func (w *FlowControlWindow) Reset(size uint32) {
	w.initialSize = size
	w.current = int64(size)
}
