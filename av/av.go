// Package av defines basic interfaces and data structures of container demux/decode.
package av

import (
	"errors"
	"fmt"
)

type CodecType uint32

const (
	H264 = CodecType(iota + 1)
	H265
)

func (self CodecType) String() string {
	switch self {
	case H264:
		return "H264"
	case H265:
		return "H265"
	}
	return ""
}

// CodecData is some configuration data a decoder needs before it can
// start decoding packets of that codec.
type CodecData interface {
	Type() CodecType
}

type VideoCodecData interface {
	CodecData
	Width() int
	Height() int
}

var (
	ErrNoVideoTrack           = errors.New("av: no video track found")
	ErrUnsupportedCodecConfig = errors.New("av: codec config not supported by decoder")
)

// DecodeError wraps an internal failure reported by the platform decoder.
// It is terminal for the session.
type DecodeError struct {
	Err error
}

func (self DecodeError) Error() string {
	return fmt.Sprintf("av: decode error: %v", self.Err)
}

func (self DecodeError) Unwrap() error {
	return self.Err
}

// ParseError wraps a malformed-container failure reported while demuxing.
type ParseError struct {
	Err error
}

func (self ParseError) Error() string {
	return fmt.Sprintf("av: parse error: %v", self.Err)
}

func (self ParseError) Unwrap() error {
	return self.Err
}
