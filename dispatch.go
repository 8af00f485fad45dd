package h2wire

// dispatchFrame applies one inbound frame's effect to settings, flow
// control, and the stream table. It is shared by the client and
// server reader goroutines (spec.md §4.6's two driver loops differ
// only in handshake direction and request/response initiation, not in
// how they demultiplex inbound frames).
func (c *conn) dispatchFrame(fr *FrameHeader) error {
	c.opts.logf("recv %s stream=%d flags=0x%x len=%d", fr.Type, fr.StreamID, uint8(fr.Flags), fr.Length)
	switch fr.Type {
	case FrameSettings:
		return c.handleSettingsFrame(fr)
	case FramePing:
		return c.handlePingFrame(fr)
	case FrameWindowUpdate:
		return c.handleWindowUpdateFrame(fr)
	case FrameGoAway:
		return c.handleGoAwayFrame(fr)
	case FrameRstStream:
		return c.handleRstStreamFrame(fr)
	case FramePriority:
		return c.handlePriorityFrame(fr)
	case FrameHeaders:
		return c.handleHeadersFrame(fr)
	case FrameContinuation:
		return c.handleContinuationFrame(fr)
	case FrameData:
		return c.handleDataFrame(fr)
	case FramePushPromise:
		return c.handlePushPromiseFrame(fr)
	default:
		// Unknown frame types are ignored per RFC 7540 §4.1 (extension
		// point); the codec already decoded the header successfully.
		return nil
	}
}

func (c *conn) handleSettingsFrame(fr *FrameHeader) error {
	if fr.StreamID != 0 {
		return NewError(ErrCodeProtocol, KindNone, "SETTINGS on stream %d", fr.StreamID)
	}

	sf := &SettingsFrame{}
	if err := sf.Deserialize(fr); err != nil {
		return err
	}

	if sf.Ack {
		c.settingsAckOnce.Do(func() { close(c.settingsAcked) })
		return nil
	}

	if err := sf.Settings.Validate(); err != nil {
		return err
	}

	prevInitial := c.remoteSettings.InitialWindowSize()

	c.mu.Lock()
	c.remoteSettings.Merge(sf.Settings)
	newInitial := c.remoteSettings.InitialWindowSize()
	if max, ok := c.remoteSettings.MaxConcurrentStreams(); ok {
		c.streams.SetMaxConcurrentStreams(max)
	}
	c.enc.SetMaxDynamicTableSize(c.remoteSettings.HeaderTableSize())
	c.mu.Unlock()

	if newInitial != prevInitial {
		if err := c.streams.RescaleAll(newInitial); err != nil {
			return err
		}
	}

	c.handshakeOnce.Do(func() { close(c.handshakeDone) })

	ack := AcquireFrameHeader()
	ack.Type = FrameSettings
	(&SettingsFrame{Ack: true}).Serialize(ack)
	return c.writeFrame(ack)
}

func (c *conn) handlePingFrame(fr *FrameHeader) error {
	if fr.StreamID != 0 {
		return NewError(ErrCodeProtocol, KindNone, "PING on stream %d", fr.StreamID)
	}

	p := &Ping{}
	if err := p.Deserialize(fr); err != nil {
		return err
	}
	if p.Ack {
		c.notify(0)
		return nil
	}

	reply := AcquireFrameHeader()
	reply.Type = FramePing
	(&Ping{Ack: true, Data: p.Data}).Serialize(reply)
	return c.writeFrame(reply)
}

func (c *conn) handleWindowUpdateFrame(fr *FrameHeader) error {
	wu := &WindowUpdate{}
	if err := wu.Deserialize(fr); err != nil {
		return err
	}
	if wu.Increment == 0 {
		if fr.StreamID == 0 {
			return NewError(ErrCodeFlowControl, KindNone, "WINDOW_UPDATE increment 0 on connection")
		}
		return c.resetStream(fr.StreamID, ErrCodeFlowControl)
	}

	if fr.StreamID == 0 {
		c.mu.Lock()
		err := c.connSendWindow.Increase(wu.Increment)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		c.notify(0)
		return nil
	}

	s, ok := c.streams.Get(fr.StreamID)
	if !ok {
		return nil // window update on a cleaned-up stream: ignore
	}
	if err := s.SendWindow.Increase(wu.Increment); err != nil {
		return c.resetStream(fr.StreamID, ErrCodeFlowControl)
	}
	c.notify(fr.StreamID)
	return nil
}

func (c *conn) handleGoAwayFrame(fr *FrameHeader) error {
	ga := &GoAway{}
	if err := ga.Deserialize(fr); err != nil {
		return err
	}
	c.setGoAwayReceived(ga.LastStreamID, ga.Code)
	c.notify(0)
	return nil
}

func (c *conn) handleRstStreamFrame(fr *FrameHeader) error {
	rst := &RstStream{}
	if err := rst.Deserialize(fr); err != nil {
		return err
	}
	s, ok := c.streams.Get(fr.StreamID)
	if !ok {
		return NewError(ErrCodeProtocol, KindStreamNotFound, "RST_STREAM on unknown stream %d", fr.StreamID)
	}
	s.Reset(rst.Code)
	c.notify(fr.StreamID)
	return nil
}

func (c *conn) handlePriorityFrame(fr *FrameHeader) error {
	p := &Priority{}
	if err := p.Deserialize(fr); err != nil {
		return err
	}
	s, err := c.streams.GetOrCreate(fr.StreamID, c.localSettings.InitialWindowSize())
	if err != nil {
		// A PRIORITY frame may legitimately arrive for a stream that
		// was never otherwise opened (RFC 7540 §5.1); only a genuine
		// id-ordering violation is worth surfacing.
		if herr, ok := err.(*Error); ok && herr.Kind == KindInvalidStreamId {
			return err
		}
		return nil
	}
	s.Priority = p
	return nil
}

func (c *conn) handleHeadersFrame(fr *FrameHeader) error {
	hf := &HeadersFrame{}
	if err := hf.Deserialize(fr); err != nil {
		return err
	}

	s, err := c.streams.GetOrCreate(fr.StreamID, c.localSettings.InitialWindowSize())
	if err != nil {
		return err
	}

	s.AppendHeaderFragment(hf.HeaderBlock())

	if hf.EndHeadersFlag {
		if err := c.finishHeaderBlock(s, hf.EndStreamFlag); err != nil {
			return err
		}
	} else if hf.EndStreamFlag {
		// END_STREAM with more CONTINUATION to come: record now,
		// finishHeaderBlock will see it once END_HEADERS arrives.
		s.StreamComplete = true
	}

	if err := s.ReceiveHeaders(hf.EndStreamFlag); err != nil {
		return err
	}

	c.notify(fr.StreamID)
	return nil
}

func (c *conn) handleContinuationFrame(fr *FrameHeader) error {
	cont := &Continuation{}
	if err := cont.Deserialize(fr); err != nil {
		return err
	}

	s, ok := c.streams.Get(fr.StreamID)
	if !ok {
		return NewError(ErrCodeProtocol, KindStreamNotFound, "CONTINUATION on unknown stream %d", fr.StreamID)
	}

	s.AppendHeaderFragment(cont.HeaderBlock())

	if cont.EndHeadersFlag {
		if err := c.finishHeaderBlock(s, s.StreamComplete); err != nil {
			return err
		}
		c.notify(fr.StreamID)
	}
	return nil
}

// finishHeaderBlock HPACK-decodes a stream's accumulated header block
// once END_HEADERS has arrived, choosing request vs. response vs.
// trailers based on connection role and whether headers already
// completed once for this stream.
func (c *conn) finishHeaderBlock(s *Stream, endStream bool) error {
	block := s.HeaderBlock()

	c.mu.Lock()
	fields, err := c.dec.Decode(block)
	c.mu.Unlock()
	if err != nil {
		return NewError(ErrCodeCompression, KindNone, "HPACK decode failed: %v", err)
	}
	s.ResetHeaderBlock()

	if s.HeadersComplete {
		// Trailers: appended, pseudo-headers ignored.
		s.RespHeaders = append(s.RespHeaders, fields...)
		return nil
	}

	if c.isClient {
		s.SetResponseHeaders(fields)
	} else {
		s.SetRequestHeaders(fields)
	}
	s.HeadersComplete = true
	if endStream {
		s.StreamComplete = true
	}
	return nil
}

func (c *conn) handleDataFrame(fr *FrameHeader) error {
	d := &Data{}
	if err := d.Deserialize(fr); err != nil {
		return err
	}

	s, ok := c.streams.Get(fr.StreamID)
	if !ok {
		return NewError(ErrCodeProtocol, KindStreamNotFound, "DATA on unknown stream %d", fr.StreamID)
	}

	c.mu.Lock()
	c.connRecvWindow.Decrease(int64(d.Len()))
	var connIncrement uint32
	if c.connRecvWindow.ShouldUpdate() {
		initial := c.connRecvWindow.InitialSize()
		connIncrement = uint32(int64(initial) - c.connRecvWindow.Size())
		c.connRecvWindow.Reset(initial)
	}
	c.mu.Unlock()

	if err := s.ReceiveData(d.Bytes(), d.EndStreamFlag); err != nil {
		return err
	}

	if connIncrement > 0 {
		wu := AcquireFrameHeader()
		wu.StreamID = 0
		wu.Type = FrameWindowUpdate
		(&WindowUpdate{Increment: connIncrement}).Serialize(wu)
		if err := c.writeFrame(wu); err != nil {
			return err
		}
	}

	if s.RecvWindow.ShouldUpdate() {
		initial := s.RecvWindow.InitialSize()
		streamIncrement := uint32(int64(initial) - s.RecvWindow.Size())
		s.RecvWindow.Reset(initial)
		wu := AcquireFrameHeader()
		wu.StreamID = s.ID()
		wu.Type = FrameWindowUpdate
		(&WindowUpdate{Increment: streamIncrement}).Serialize(wu)
		if err := c.writeFrame(wu); err != nil {
			return err
		}
	}

	c.notify(fr.StreamID)
	return nil
}

func (c *conn) handlePushPromiseFrame(fr *FrameHeader) error {
	if !c.localSettings.EnablePush() {
		return NewError(ErrCodeProtocol, KindNone, "PUSH_PROMISE received with ENABLE_PUSH=0")
	}

	pp := &PushPromise{}
	if err := pp.Deserialize(fr); err != nil {
		return err
	}

	s, err := c.streams.GetOrCreate(pp.PromisedStreamID, c.localSettings.InitialWindowSize())
	if err != nil {
		return err
	}
	// A PUSH_PROMISE reserves the promised stream directly, bypassing
	// the ReceiveHeaders/SendHeaders transition table a HEADERS frame
	// would otherwise drive.
	s.ReserveRemote()
	s.AppendHeaderFragment(pp.HeaderBlock())
	if pp.EndHeadersFlag {
		if err := c.finishHeaderBlock(s, false); err != nil {
			return err
		}
	}
	c.notify(pp.PromisedStreamID)
	return nil
}

// resetStream sends RST_STREAM locally and closes the stream, the
// stream-error handling spec.md §7 describes: the connection
// continues, only the offending stream is torn down.
func (c *conn) resetStream(streamID uint32, code ErrorCode) error {
	s, ok := c.streams.Get(streamID)
	if ok {
		s.Reset(code)
	}
	fr := AcquireFrameHeader()
	fr.StreamID = streamID
	fr.Type = FrameRstStream
	(&RstStream{Code: code}).Serialize(fr)
	err := c.writeFrame(fr)
	c.notify(streamID)
	return err
}

// sendGoAway marks the connection unusable for new streams, then sends
// GOAWAY carrying the caller-supplied lastStreamID and code.
func (c *conn) sendGoAway(code ErrorCode, lastStreamID uint32) error {
	c.mu.Lock()
	c.goAwaySent = true
	c.mu.Unlock()

	fr := AcquireFrameHeader()
	fr.StreamID = 0
	fr.Type = FrameGoAway
	(&GoAway{LastStreamID: lastStreamID, Code: code}).Serialize(fr)
	return c.writeFrame(fr)
}
