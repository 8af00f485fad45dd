package h2wire

import "sync"

// StreamManager owns every stream on one connection, keyed by id. It
// allocates local stream ids (odd for a client, even for a server,
// stepping by 2) and enforces the peer's MAX_CONCURRENT_STREAMS.
//
// Grounded on original_source/src/http/h2/stream.rs's StreamManager
// (HashMap-keyed, the same create/get_or_create/cleanup operations)
// and other_examples/perbu-GTest2's map-based StreamManager for Go
// idiom. The teacher's own streams.go instead keeps a sorted slice
// (arena-by-id via sort.Search); a map is used here because
// GetOrCreate's "a lower unknown id is a connection error" rule needs
// a running high-water mark a sorted slice does not simplify.
type StreamManager struct {
	mu sync.Mutex

	streams map[uint32]*Stream

	nextLocalID  uint32
	highestPeerID uint32

	maxConcurrentStreams uint32 // 0 means unbounded
}

// NewStreamManager builds a manager for a client (isClient=true
// allocates odd ids starting at 1) or server (even ids starting at 2).
func NewStreamManager(isClient bool) *StreamManager {
	start := uint32(2)
	if isClient {
		start = 1
	}
	return &StreamManager{
		streams:     make(map[uint32]*Stream),
		nextLocalID: start,
	}
}

// SetMaxConcurrentStreams configures the enforcement cap; 0 means
// unbounded, matching Settings.MaxConcurrentStreams's (0, false) case.
func (sm *StreamManager) SetMaxConcurrentStreams(n uint32) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.maxConcurrentStreams = n
}

// activeCountLocked counts streams not yet Closed.
func (sm *StreamManager) activeCountLocked() int {
	n := 0
	for _, s := range sm.streams {
		if s.State() != StreamClosed {
			n++
		}
	}
	return n
}

// CreateStream allocates a new locally-initiated stream and inserts
// it, failing with TooManyStreams if the active count would exceed
// the peer's MAX_CONCURRENT_STREAMS.
func (sm *StreamManager) CreateStream(initialWindow uint32) (*Stream, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.maxConcurrentStreams > 0 && uint32(sm.activeCountLocked()) >= sm.maxConcurrentStreams {
		return nil, NewError(ErrCodeRefusedStream, KindTooManyStreams, "max concurrent streams (%d) reached", sm.maxConcurrentStreams)
	}

	id := sm.nextLocalID
	sm.nextLocalID += 2

	s := NewStream(id, initialWindow)
	sm.streams[id] = s
	return s, nil
}

// GetOrCreate is used for inbound frames carrying a peer-initiated
// stream id: it returns the existing stream if known, otherwise
// inserts a new one — but only if id is higher than any previously
// seen peer id. A lower, unknown id means the peer reused or
// reordered an id, a connection error (PROTOCOL_ERROR).
func (sm *StreamManager) GetOrCreate(id uint32, initialWindow uint32) (*Stream, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s, ok := sm.streams[id]; ok {
		return s, nil
	}

	if id <= sm.highestPeerID {
		return nil, NewError(ErrCodeProtocol, KindInvalidStreamId, "stream id %d is not greater than highest seen peer id %d", id, sm.highestPeerID)
	}

	if sm.maxConcurrentStreams > 0 && uint32(sm.activeCountLocked()) >= sm.maxConcurrentStreams {
		return nil, NewError(ErrCodeRefusedStream, KindTooManyStreams, "max concurrent streams (%d) reached", sm.maxConcurrentStreams)
	}

	sm.highestPeerID = id
	s := NewStream(id, initialWindow)
	sm.streams[id] = s
	return s, nil
}

// Get returns an existing stream by id, or (nil, false).
func (sm *StreamManager) Get(id uint32) (*Stream, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.streams[id]
	return s, ok
}

// Delete removes one stream from the manager, whatever its state.
// Cleanup removes every Closed stream itself without calling Delete.
func (sm *StreamManager) Delete(id uint32) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.streams, id)
}

// Cleanup removes every Closed stream. The caller must ensure any
// pending body/error has already been delivered to the test, per
// spec.md §4.5.
func (sm *StreamManager) Cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for id, s := range sm.streams {
		if s.State() == StreamClosed {
			delete(sm.streams, id)
		}
	}
}

// ActiveCount returns the number of non-Closed streams.
func (sm *StreamManager) ActiveCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.activeCountLocked()
}

// RescaleAll applies a flow-control rescale to every stream's send
// window, used when the peer updates INITIAL_WINDOW_SIZE (spec.md
// §4.6's "apply INITIAL_WINDOW_SIZE rescale to every existing
// stream's send window").
func (sm *StreamManager) RescaleAll(newInitial uint32) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, s := range sm.streams {
		if err := s.SendWindow.Rescale(newInitial); err != nil {
			return err
		}
	}
	return nil
}
