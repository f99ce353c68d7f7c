package av

// Surface is one decoded picture owned by the decoder. Clone makes a deep
// copy that stays valid after the original is closed; it is used on
// platforms where the decoder reuses its output buffers.
type Surface interface {
	Width() int
	Height() int
	Clone() Surface
	Close()
}

// Frame is one decoded video frame with recovered presentation timing.
// Whichever stage currently holds a Frame owns it; a stage that drops a
// frame without forwarding it must call Close.
type Frame struct {
	Surface         Surface
	TimestampMicros int64
	DurationMicros  int64

	closed bool
}

func (self *Frame) Close() {
	if self.closed {
		return
	}
	self.closed = true
	if self.Surface != nil {
		self.Surface.Close()
	}
}
