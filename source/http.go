package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vodkit/mp4pipe/av"
)

// HTTP fetches a file by progressive download and yields it as chunks.
// Content-Length, when the server reports one, becomes TotalLength on
// every chunk.
type HTTP struct {
	url    string
	client *http.Client
	inner  *Reader
}

func NewHTTP(url string) *HTTP {
	return &HTTP{url: url, client: http.DefaultClient}
}

func NewHTTPClient(url string, client *http.Client) *HTTP {
	return &HTTP{url: url, client: client}
}

func (self *HTTP) Next(ctx context.Context) (chunk av.ByteChunk, err error) {
	if self.inner == nil {
		var req *http.Request
		if req, err = http.NewRequestWithContext(ctx, http.MethodGet, self.url, nil); err != nil {
			return
		}
		var resp *http.Response
		if resp, err = self.client.Do(req); err != nil {
			return
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			err = fmt.Errorf("source: http status %s", resp.Status)
			return
		}
		self.inner = NewReader(resp.Body, resp.ContentLength, 0)
	}
	return self.inner.Next(ctx)
}

func (self *HTTP) Close() error {
	if self.inner == nil {
		return nil
	}
	return self.inner.Close()
}
