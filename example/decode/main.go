package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/vodkit/mp4pipe/decoder"
	"github.com/vodkit/mp4pipe/pipeline"
	"github.com/vodkit/mp4pipe/source"
)

// Decodes a progressive MP4 while it downloads and prints per-frame
// timing. The fake decoder stands in for a platform backend.
func main() {
	url := flag.String("url", "", "http url of a progressive mp4")
	path := flag.String("file", "", "local mp4 file")
	flag.Parse()

	var src source.ChunkSource
	switch {
	case *url != "":
		src = source.NewHTTP(*url)
	case *path != "":
		f, err := os.Open(*path)
		if err != nil {
			log.Fatalln(err)
		}
		st, err := f.Stat()
		if err != nil {
			log.Fatalln(err)
		}
		src = source.NewReader(f, st.Size(), 0)
	default:
		log.Fatalln("need -url or -file")
	}
	defer src.Close()

	ctx := context.Background()
	session, err := pipeline.Decode(ctx, src, &decoder.FakeDecoder{})
	if err != nil {
		log.Fatalln("decode:", err)
	}
	defer session.Close()

	info := session.Info()
	log.Printf("track %d: %dx%d, %d frames, %.3f fps, codec %v",
		info.TrackID, info.Width, info.Height, info.FrameCount, info.FPS, info.CodecData.Type())

	for {
		frame, err := session.ReadFrame(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalln("read frame:", err)
		}
		log.Printf("frame %d: pts=%dus dur=%dus %dx%d",
			session.FramesDecoded(), frame.TimestampMicros, frame.DurationMicros,
			frame.Surface.Width(), frame.Surface.Height())
		frame.Close()
	}
	log.Printf("done: %d frames", session.FramesDecoded())
}
