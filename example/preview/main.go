package main

import (
	"context"
	"flag"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"os"

	"github.com/vodkit/mp4pipe/av"
	"github.com/vodkit/mp4pipe/decoder"
	"github.com/vodkit/mp4pipe/format/webrtc"
	"github.com/vodkit/mp4pipe/pipeline"
	"github.com/vodkit/mp4pipe/source"
)

// Serves the coded samples of a local MP4 as a WebRTC preview track
// while the file is decoded. POST a base64 SDP offer to /stream and the
// response body is the base64 answer.
func main() {
	path := flag.String("file", "", "local mp4 file")
	addr := flag.String("addr", ":8083", "http listen address")
	flag.Parse()
	if *path == "" {
		log.Fatalln("need -file")
	}

	http.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		offer, err := ioutil.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, err := os.Open(*path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		st, _ := f.Stat()

		ctx := context.Background()
		pkts := make(chan av.Packet, 1024)
		session, err := pipeline.Decode(ctx, source.NewReader(f, st.Size(), 0), &decoder.FakeDecoder{},
			pipeline.WithPacketSink(func(batch []av.Packet) {
				for _, pkt := range batch {
					pkts <- pkt
				}
			}))
		if err != nil {
			f.Close()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		muxer := webrtc.NewMuxer()
		answer, err := muxer.WriteHeader(session.Info().CodecData, string(offer))
		if err != nil {
			session.Close()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		go func() {
			defer muxer.Close()
			for pkt := range pkts {
				if err := muxer.WritePacket(pkt); err != nil {
					log.Println("write packet:", err)
					return
				}
			}
		}()
		go func() {
			defer session.Close()
			defer close(pkts)
			for {
				frame, err := session.ReadFrame(ctx)
				if err == io.EOF {
					return
				}
				if err != nil {
					log.Println("read frame:", err)
					return
				}
				frame.Close()
			}
		}()

		w.Write([]byte(answer))
	})

	log.Println("listening on", *addr)
	log.Fatalln(http.ListenAndServe(*addr, nil))
}
