package av

import "time"

// Packet is one coded sample demuxed from a container, in decode order.
// Index is the decode-order position of the sample inside its track,
// starting at 0. Time is the decode timestamp and CompositionTime the
// absolute presentation timestamp, which may precede Time's zero point
// when the container uses edit lists. Data is never mutated after the
// demuxer emits it.
type Packet struct {
	IsKeyFrame      bool
	Idx             int8
	Index           int
	Time            time.Duration
	CompositionTime time.Duration
	Duration        time.Duration
	TimeScale       uint32
	Data            []byte
}

// ByteChunk is one piece of a progressively delivered file. Start/End are
// absolute byte offsets of Data within the file, TotalLength the full file
// size (-1 if unknown). Chunks must be contiguous and increasing in Start.
type ByteChunk struct {
	Data        []byte
	Start       int64
	End         int64
	TotalLength int64
}
