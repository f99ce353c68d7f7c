// Package decoder feeds demuxed samples to a video decoder and recovers
// per-frame presentation timing the decoder itself does not report.
package decoder

import (
	"github.com/vodkit/mp4pipe/av"
)

var Debug bool

// Config is the decoder configuration derived from container metadata.
// Description is the raw decoder configuration record (avcC/hvcC payload
// without the box header).
type Config struct {
	Codec       string
	Width       int
	Height      int
	Description []byte
}

// VideoDecoder is the platform decoder contract. Decode output is
// asynchronous: implementations deliver frames through the OnFrame
// callback, in submission order, and report internal failures through
// OnError. Both callbacks must be registered before Configure.
type VideoDecoder interface {
	Configure(cfg Config) error
	Decode(pkt av.Packet) error
	Flush() error
	Close() error
	OnFrame(fn func(av.Surface))
	OnError(fn func(error))
}

// ConfigChecker is implemented by decoders that can report up front
// whether a configuration is decodable.
type ConfigChecker interface {
	ConfigSupported(cfg Config) bool
}

// IsConfigSupported asks the decoder about cfg when it implements
// ConfigChecker; decoders without a capability check accept everything
// and fail later at Configure or Decode.
func IsConfigSupported(dec VideoDecoder, cfg Config) bool {
	if c, ok := dec.(ConfigChecker); ok {
		return c.ConfigSupported(cfg)
	}
	return true
}
