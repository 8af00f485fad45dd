package h2wire

import "github.com/vtesthq/h2wire/internal/wire"

// SettingID identifies a SETTINGS parameter. Values 0x8 and 0x9 are
// RFC 8441 / RFC 9218 extensions this harness carries alongside the
// six classic RFC 7540 parameters, per SPEC_FULL.md §4.2a.
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
	SettingEnableConnectProtocol SettingID = 0x8
	SettingNoRFC7540Priorities  SettingID = 0x9
)

// RFC-default values, returned by the Get* accessors when a parameter
// has never been set.
const (
	DefaultHeaderTableSize   = 4096
	DefaultEnablePush        = true
	DefaultInitialWindowSize = 65535
	DefaultMaxFrameSize      = 16384
	MinMaxFrameSize          = 16384
	MaxMaxFrameSize          = 16777215
)

// Settings is a sparse map from parameter id to value. Each field is a
// pointer so "unset" (use the RFC default, never emit on the wire) is
// distinguishable from "explicitly set to the default value" — the
// same distinction original_source/src/http/h2/settings.rs makes with
// Option<u32> fields.
type Settings struct {
	headerTableSize       *uint32
	enablePush            *bool
	maxConcurrentStreams  *uint32
	initialWindowSize     *uint32
	maxFrameSize          *uint32
	maxHeaderListSize     *uint32
	enableConnectProtocol *bool
	noRFC7540Priorities   *bool
}

// NewSettings returns a Settings value with every parameter absent.
func NewSettings() *Settings { return &Settings{} }

func u32p(n uint32) *uint32 { return &n }
func boolp(b bool) *bool    { return &b }

func (s *Settings) SetHeaderTableSize(n uint32) *Settings { s.headerTableSize = u32p(n); return s }
func (s *Settings) SetEnablePush(b bool) *Settings        { s.enablePush = boolp(b); return s }
func (s *Settings) SetMaxConcurrentStreams(n uint32) *Settings {
	s.maxConcurrentStreams = u32p(n)
	return s
}
func (s *Settings) SetInitialWindowSize(n uint32) *Settings { s.initialWindowSize = u32p(n); return s }
func (s *Settings) SetMaxFrameSize(n uint32) *Settings      { s.maxFrameSize = u32p(n); return s }
func (s *Settings) SetMaxHeaderListSize(n uint32) *Settings {
	s.maxHeaderListSize = u32p(n)
	return s
}
func (s *Settings) SetEnableConnectProtocol(b bool) *Settings {
	s.enableConnectProtocol = boolp(b)
	return s
}
func (s *Settings) SetNoRFC7540Priorities(b bool) *Settings {
	s.noRFC7540Priorities = boolp(b)
	return s
}

func (s *Settings) HeaderTableSize() uint32 {
	if s.headerTableSize != nil {
		return *s.headerTableSize
	}
	return DefaultHeaderTableSize
}

func (s *Settings) EnablePush() bool {
	if s.enablePush != nil {
		return *s.enablePush
	}
	return DefaultEnablePush
}

// MaxConcurrentStreams returns the configured cap, or (0, false) for
// "unbounded" — the RFC default.
func (s *Settings) MaxConcurrentStreams() (uint32, bool) {
	if s.maxConcurrentStreams != nil {
		return *s.maxConcurrentStreams, true
	}
	return 0, false
}

func (s *Settings) InitialWindowSize() uint32 {
	if s.initialWindowSize != nil {
		return *s.initialWindowSize
	}
	return DefaultInitialWindowSize
}

func (s *Settings) MaxFrameSize() uint32 {
	if s.maxFrameSize != nil {
		return *s.maxFrameSize
	}
	return DefaultMaxFrameSize
}

// MaxHeaderListSize returns the configured cap, or (0, false) for
// "unbounded".
func (s *Settings) MaxHeaderListSize() (uint32, bool) {
	if s.maxHeaderListSize != nil {
		return *s.maxHeaderListSize, true
	}
	return 0, false
}

func (s *Settings) EnableConnectProtocol() bool {
	return s.enableConnectProtocol != nil && *s.enableConnectProtocol
}

func (s *Settings) NoRFC7540Priorities() bool {
	return s.noRFC7540Priorities != nil && *s.noRFC7540Priorities
}

// Validate enforces the numeric ranges RFC 7540 §6.5.2 places on
// INITIAL_WINDOW_SIZE and MAX_FRAME_SIZE. It never clamps: an
// out-of-range value is reported as an error, matching
// settings.rs's validate().
func (s *Settings) Validate() error {
	if s.initialWindowSize != nil && *s.initialWindowSize > 1<<31-1 {
		return NewError(ErrCodeFlowControl, KindInvalidSettings,
			"INITIAL_WINDOW_SIZE %d exceeds 2^31-1", *s.initialWindowSize)
	}
	if s.maxFrameSize != nil {
		v := *s.maxFrameSize
		if v < MinMaxFrameSize || v > MaxMaxFrameSize {
			return NewError(ErrCodeProtocol, KindInvalidSettings,
				"MAX_FRAME_SIZE %d outside [%d, %d]", v, MinMaxFrameSize, MaxMaxFrameSize)
		}
	}
	return nil
}

// Merge overwrites every parameter present in other onto s, leaving
// absent parameters in other untouched on s.
func (s *Settings) Merge(other *Settings) {
	if other.headerTableSize != nil {
		s.headerTableSize = other.headerTableSize
	}
	if other.enablePush != nil {
		s.enablePush = other.enablePush
	}
	if other.maxConcurrentStreams != nil {
		s.maxConcurrentStreams = other.maxConcurrentStreams
	}
	if other.initialWindowSize != nil {
		s.initialWindowSize = other.initialWindowSize
	}
	if other.maxFrameSize != nil {
		s.maxFrameSize = other.maxFrameSize
	}
	if other.maxHeaderListSize != nil {
		s.maxHeaderListSize = other.maxHeaderListSize
	}
	if other.enableConnectProtocol != nil {
		s.enableConnectProtocol = other.enableConnectProtocol
	}
	if other.noRFC7540Priorities != nil {
		s.noRFC7540Priorities = other.noRFC7540Priorities
	}
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	return &c
}

// entry is one 6-byte SETTINGS parameter on the wire: a 2-byte id
// followed by a 4-byte value.
type entry struct {
	id    SettingID
	value uint32
}

func (s *Settings) entries() []entry {
	var es []entry
	if s.headerTableSize != nil {
		es = append(es, entry{SettingHeaderTableSize, *s.headerTableSize})
	}
	if s.enablePush != nil {
		v := uint32(0)
		if *s.enablePush {
			v = 1
		}
		es = append(es, entry{SettingEnablePush, v})
	}
	if s.maxConcurrentStreams != nil {
		es = append(es, entry{SettingMaxConcurrentStreams, *s.maxConcurrentStreams})
	}
	if s.initialWindowSize != nil {
		es = append(es, entry{SettingInitialWindowSize, *s.initialWindowSize})
	}
	if s.maxFrameSize != nil {
		es = append(es, entry{SettingMaxFrameSize, *s.maxFrameSize})
	}
	if s.maxHeaderListSize != nil {
		es = append(es, entry{SettingMaxHeaderListSize, *s.maxHeaderListSize})
	}
	if s.enableConnectProtocol != nil {
		v := uint32(0)
		if *s.enableConnectProtocol {
			v = 1
		}
		es = append(es, entry{SettingEnableConnectProtocol, v})
	}
	if s.noRFC7540Priorities != nil {
		v := uint32(0)
		if *s.noRFC7540Priorities {
			v = 1
		}
		es = append(es, entry{SettingNoRFC7540Priorities, v})
	}
	return es
}

func (s *Settings) apply(id SettingID, value uint32) {
	switch id {
	case SettingHeaderTableSize:
		s.headerTableSize = u32p(value)
	case SettingEnablePush:
		s.enablePush = boolp(value != 0)
	case SettingMaxConcurrentStreams:
		s.maxConcurrentStreams = u32p(value)
	case SettingInitialWindowSize:
		s.initialWindowSize = u32p(value)
	case SettingMaxFrameSize:
		s.maxFrameSize = u32p(value)
	case SettingMaxHeaderListSize:
		s.maxHeaderListSize = u32p(value)
	case SettingEnableConnectProtocol:
		s.enableConnectProtocol = boolp(value != 0)
	case SettingNoRFC7540Priorities:
		s.noRFC7540Priorities = boolp(value != 0)
	default:
		// Unrecognized parameters are silently ignored on receive,
		// per RFC 7540 §6.5.2.
	}
}

// SettingsFrame is the SETTINGS frame payload (RFC 7540 §6.5): either
// an ACK (empty payload) or a list of parameter/value pairs.
type SettingsFrame struct {
	Ack      bool
	Settings *Settings
}

func (sf *SettingsFrame) Reset() {
	sf.Ack = false
	sf.Settings = nil
}

// Deserialize decodes a SETTINGS payload. A length not a multiple of
// 6 is a FRAME_SIZE_ERROR per spec.md §8 invariant 6; an ACK frame
// carrying a non-empty payload is also rejected.
func (sf *SettingsFrame) Deserialize(fr *FrameHeader) error {
	sf.Ack = fr.Flags.Has(FlagAck)

	if sf.Ack {
		if len(fr.payload) != 0 {
			return NewError(ErrCodeFrameSize, KindNone, "SETTINGS ACK with non-empty payload")
		}
		sf.Settings = NewSettings()
		return nil
	}

	if len(fr.payload)%6 != 0 {
		return NewError(ErrCodeFrameSize, KindNone, "SETTINGS payload length %d not a multiple of 6", len(fr.payload))
	}

	s := NewSettings()
	for i := 0; i+6 <= len(fr.payload); i += 6 {
		id := SettingID(uint16(fr.payload[i])<<8 | uint16(fr.payload[i+1]))
		value := wire.BytesToUint32(fr.payload[i+2 : i+6])
		s.apply(id, value)
	}
	sf.Settings = s
	return nil
}

// Serialize writes an empty ACK payload, or one 6-byte entry per
// present parameter (order is implementation-defined, per spec.md
// §4.1; map iteration order is avoided by building entries off the
// struct's fixed field order instead).
func (sf *SettingsFrame) Serialize(fr *FrameHeader) {
	if sf.Ack {
		fr.Flags = fr.Flags.Add(FlagAck)
		fr.SetPayload(nil)
		return
	}

	var payload []byte
	if sf.Settings != nil {
		for _, e := range sf.Settings.entries() {
			payload = append(payload, byte(e.id>>8), byte(e.id))
			payload = wire.AppendUint32Bytes(payload, e.value)
		}
	}
	fr.SetPayload(payload)
}
