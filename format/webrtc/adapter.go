// Package webrtc relays demuxed coded samples to a WebRTC peer, so a
// caller can preview the stream while a decode session is running.
package webrtc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/vodkit/mp4pipe/av"
	"github.com/vodkit/mp4pipe/codec/h264parser"
	"github.com/vodkit/mp4pipe/codec/h265parser"
)

const (
	MimeTypeH264 = "video/h264"
	MimeTypeH265 = "video/h265"
)

var (
	ErrorCodecNotSupported = errors.New("WebRTC Codec Not Supported")
	ErrorClientOffline     = errors.New("WebRTC Client Offline")
	ErrorNotTrackAvailable = errors.New("WebRTC Not Track Available")
)

type Muxer struct {
	codec     av.VideoCodecData
	track     *webrtc.TrackLocalStaticSample
	status    webrtc.ICEConnectionState
	stop      bool
	pc        *webrtc.PeerConnection
	ClientACK *time.Timer
	StreamACK *time.Timer
}

func NewMuxer() *Muxer {
	tmp := Muxer{ClientACK: time.NewTimer(time.Second * 20), StreamACK: time.NewTimer(time.Second * 20)}
	go tmp.WaitCloser()
	return &tmp
}

// WriteHeader negotiates the peer connection against the client's
// base64 SDP offer and adds one video track for codec. It returns the
// base64 SDP answer.
func (element *Muxer) WriteHeader(codec av.VideoCodecData, sdp64 string) (string, error) {
	var WriteHeaderSuccess bool
	sdpB, err := base64.StdEncoding.DecodeString(sdp64)
	if err != nil {
		return "", err
	}
	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  string(sdpB),
	}
	peerConnection, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return "", err
	}
	defer func() {
		if !WriteHeaderSuccess {
			if err := element.Close(); err != nil {
				log.Println(err)
			}
		}
	}()

	var mime string
	switch codec.Type() {
	case av.H264:
		mime = MimeTypeH264
	case av.H265:
		mime = MimeTypeH265
	default:
		return "", ErrorCodecNotSupported
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType: mime,
	}, "mp4pipe-video", "mp4pipe-video")
	if err != nil {
		return "", err
	}
	if _, err = peerConnection.AddTrack(track); err != nil {
		return "", err
	}
	element.codec = codec
	element.track = track

	peerConnection.OnICEConnectionStateChange(func(connectionState webrtc.ICEConnectionState) {
		element.status = connectionState
		if connectionState == webrtc.ICEConnectionStateDisconnected {
			element.Close()
		}
	})
	peerConnection.OnDataChannel(func(d *webrtc.DataChannel) {
		d.OnMessage(func(msg webrtc.DataChannelMessage) {
			element.ClientACK.Reset(5 * time.Second)
		})
	})

	if err = peerConnection.SetRemoteDescription(offer); err != nil {
		return "", err
	}
	gatherCompletePromise := webrtc.GatheringCompletePromise(peerConnection)
	answer, err := peerConnection.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err = peerConnection.SetLocalDescription(answer); err != nil {
		return "", err
	}
	element.pc = peerConnection
	waitT := time.NewTimer(time.Second * 10)
	select {
	case <-waitT.C:
		return "", errors.New("gatherCompletePromise wait")
	case <-gatherCompletePromise:
		//Connected
	}
	resp := peerConnection.LocalDescription()
	WriteHeaderSuccess = true
	return base64.StdEncoding.EncodeToString([]byte(resp.SDP)), nil
}

// WritePacket forwards one demuxed sample. Keyframes are prefixed with
// the track's parameter sets; length-prefixed payloads are rewritten to
// Annex B start codes.
func (element *Muxer) WritePacket(pkt av.Packet) (err error) {
	var WritePacketSuccess bool
	defer func() {
		if !WritePacketSuccess {
			element.Close()
		}
	}()
	if element.stop {
		return ErrorClientOffline
	}
	if element.status != webrtc.ICEConnectionStateConnected {
		return nil
	}
	if element.track == nil {
		return ErrorNotTrackAvailable
	}
	element.StreamACK.Reset(10 * time.Second)

	data := pkt.Data
	if pkt.IsKeyFrame {
		switch codec := element.codec.(type) {
		case h264parser.CodecData:
			data = append([]byte{0, 0, 0, 1}, bytes.Join([][]byte{codec.SPS(), codec.PPS(), data[4:]}, []byte{0, 0, 0, 1})...)
		case h265parser.CodecData:
			data = append([]byte{0, 0, 0, 1}, bytes.Join([][]byte{codec.VPS(), codec.SPS(), codec.PPS(), data[4:]}, []byte{0, 0, 0, 1})...)
		default:
			return ErrorCodecNotSupported
		}
	} else {
		data = data[4:]
	}
	if err = element.track.WriteSample(media.Sample{Data: data, Duration: pkt.Duration}); err != nil {
		return err
	}
	WritePacketSuccess = true
	return nil
}

func (element *Muxer) WaitCloser() {
	waitT := time.NewTimer(time.Second * 10)
	for {
		select {
		case <-waitT.C:
			if element.stop {
				return
			}
			waitT.Reset(time.Second * 10)
		case <-element.StreamACK.C:
			element.Close()
		case <-element.ClientACK.C:
			element.Close()
		}
	}
}

func (element *Muxer) Close() error {
	element.stop = true
	if element.pc != nil {
		if err := element.pc.Close(); err != nil {
			return err
		}
	}
	return nil
}
