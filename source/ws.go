package source

import (
	"context"
	"io"
	"net"
	"strconv"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/vodkit/mp4pipe/av"
)

// Websocket receives a file pushed over a websocket. The peer may
// announce the total length first as a text message holding a decimal
// byte count; every binary message is the next contiguous chunk. A
// close frame ends the sequence.
type Websocket struct {
	url    string
	conn   net.Conn
	offset int64
	total  int64
}

func NewWebsocket(url string) *Websocket {
	return &Websocket{url: url, total: -1}
}

func (self *Websocket) Next(ctx context.Context) (chunk av.ByteChunk, err error) {
	if self.conn == nil {
		if self.conn, _, _, err = ws.Dial(ctx, self.url); err != nil {
			return
		}
	}
	for {
		var data []byte
		var op ws.OpCode
		if data, op, err = wsutil.ReadServerData(self.conn); err != nil {
			if _, ok := err.(wsutil.ClosedError); ok {
				err = io.EOF
			}
			return
		}
		switch op {
		case ws.OpText:
			if n, perr := strconv.ParseInt(string(data), 10, 64); perr == nil {
				self.total = n
			}
		case ws.OpBinary:
			chunk = av.ByteChunk{
				Data:        data,
				Start:       self.offset,
				End:         self.offset + int64(len(data)),
				TotalLength: self.total,
			}
			self.offset += int64(len(data))
			return
		}
	}
}

func (self *Websocket) Close() error {
	if self.conn == nil {
		return nil
	}
	return self.conn.Close()
}
