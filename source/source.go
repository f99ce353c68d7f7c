// Package source produces the byte-chunk sequences a decode session
// consumes: a progressive file arrives as contiguous ranges, each
// annotated with its absolute offsets and the total expected length.
package source

import (
	"context"
	"io"

	"github.com/vodkit/mp4pipe/av"
)

const DefaultChunkSize = 256 * 1024

// ChunkSource yields successive byte ranges of one file. Next returns
// io.EOF after the final chunk. Chunks are contiguous and increasing in
// Start; ownership of each chunk transfers to the caller on return.
type ChunkSource interface {
	Next(ctx context.Context) (av.ByteChunk, error)
	Close() error
}

// Reader adapts an io.Reader into a ChunkSource of fixed-size chunks.
type Reader struct {
	r         io.Reader
	chunkSize int
	offset    int64
	total     int64
	eof       bool
}

// NewReader wraps r. total is the expected length in bytes, or -1 when
// unknown. chunkSize <= 0 selects DefaultChunkSize.
func NewReader(r io.Reader, total int64, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{r: r, chunkSize: chunkSize, total: total}
}

func (self *Reader) Next(ctx context.Context) (chunk av.ByteChunk, err error) {
	if self.eof {
		err = io.EOF
		return
	}
	if err = ctx.Err(); err != nil {
		return
	}
	b := make([]byte, self.chunkSize)
	n, rerr := io.ReadFull(self.r, b)
	if rerr == io.EOF {
		self.eof = true
		err = io.EOF
		return
	}
	if rerr == io.ErrUnexpectedEOF {
		self.eof = true
		rerr = nil
	}
	if rerr != nil {
		err = rerr
		return
	}
	chunk = av.ByteChunk{
		Data:        b[:n],
		Start:       self.offset,
		End:         self.offset + int64(n),
		TotalLength: self.total,
	}
	self.offset += int64(n)
	return
}

func (self *Reader) Close() error {
	if c, ok := self.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
