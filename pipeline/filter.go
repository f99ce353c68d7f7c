package pipeline

import (
	"github.com/vodkit/mp4pipe/av"
	"github.com/vodkit/mp4pipe/utils/timescale"
)

// editFilter trims frames that precede the first edit-list entry's media
// time. Frame timestamps arrive in microseconds, so each one is mapped
// back to the track's native timescale before the comparison. Dropped
// frames are released here; everything else passes through unchanged.
type editFilter struct {
	enabled   bool
	mediaTime int64
	scale     uint32
	next      func(*av.Frame)
}

func newEditFilter(hasEdit bool, mediaTime int64, scale uint32, next func(*av.Frame)) *editFilter {
	// mediaTime -1 is an empty edit, not a trim point
	return &editFilter{
		enabled:   hasEdit && mediaTime >= 0,
		mediaTime: mediaTime,
		scale:     scale,
		next:      next,
	}
}

func (self *editFilter) write(frame *av.Frame) {
	if self.enabled {
		cts := timescale.FromMicros(frame.TimestampMicros, self.scale)
		if cts < self.mediaTime {
			frame.Close()
			return
		}
	}
	self.next(frame)
}
