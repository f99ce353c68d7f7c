package decoder

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/vodkit/mp4pipe/av"
)

// Platform carries the capability flags that select decoder quirk paths.
// It is detected once and passed to NewAdapter so quirk decisions never
// read ambient process state.
type Platform struct {
	OS              string
	PlatformFamily  string
	PlatformVersion string

	// CloneOutputFrames is set on platforms where the decoder reuses its
	// output buffers, so a frame must be deep-copied before the callback
	// returns if it is retained.
	CloneOutputFrames bool
}

// DetectPlatform inspects the host once and derives quirk flags.
func DetectPlatform() Platform {
	p := Platform{OS: runtime.GOOS}
	if info, err := host.Info(); err == nil {
		p.OS = info.OS
		p.PlatformFamily = info.PlatformFamily
		p.PlatformVersion = info.PlatformVersion
	}
	// VideoToolbox-backed decoders hand out transient pixel buffers.
	p.CloneOutputFrames = p.OS == "darwin"
	return p
}

// frameTransform is the quirk step applied to every decoder output
// before it enters the pipeline.
type frameTransform func(av.Surface) av.Surface

func newFrameTransform(p Platform) frameTransform {
	if !p.CloneOutputFrames {
		return nil
	}
	return func(s av.Surface) av.Surface {
		c := s.Clone()
		s.Close()
		return c
	}
}
