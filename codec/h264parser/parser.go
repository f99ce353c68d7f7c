// Package h264parser parses AVC decoder configuration records (avcC).
package h264parser

import (
	"fmt"

	"github.com/vodkit/mp4pipe/av"
	"github.com/vodkit/mp4pipe/utils/bits/pio"
)

var ErrDecconfInvalid = fmt.Errorf("h264parser: AVCDecoderConfRecord invalid")

type AVCDecoderConfRecord struct {
	AVCProfileIndication uint8
	ProfileCompatibility uint8
	AVCLevelIndication   uint8
	LengthSizeMinusOne   uint8
	SPS                  [][]byte
	PPS                  [][]byte
}

func (self *AVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < 7 {
		err = ErrDecconfInvalid
		return
	}
	self.AVCProfileIndication = b[1]
	self.ProfileCompatibility = b[2]
	self.AVCLevelIndication = b[3]
	self.LengthSizeMinusOne = b[4] & 0x03
	spscount := int(b[5] & 0x1f)
	n += 6

	for i := 0; i < spscount; i++ {
		if len(b) < n+2 {
			err = ErrDecconfInvalid
			return
		}
		spslen := int(pio.U16BE(b[n:]))
		n += 2
		if len(b) < n+spslen {
			err = ErrDecconfInvalid
			return
		}
		self.SPS = append(self.SPS, b[n:n+spslen])
		n += spslen
	}

	if len(b) < n+1 {
		err = ErrDecconfInvalid
		return
	}
	ppscount := int(b[n])
	n++

	for i := 0; i < ppscount; i++ {
		if len(b) < n+2 {
			err = ErrDecconfInvalid
			return
		}
		ppslen := int(pio.U16BE(b[n:]))
		n += 2
		if len(b) < n+ppslen {
			err = ErrDecconfInvalid
			return
		}
		self.PPS = append(self.PPS, b[n:n+ppslen])
		n += ppslen
	}
	return
}

type CodecData struct {
	Record     []byte
	RecordInfo AVCDecoderConfRecord
	width      int
	height     int
}

func (self CodecData) Type() av.CodecType {
	return av.H264
}

func (self CodecData) AVCDecoderConfRecordBytes() []byte {
	return self.Record
}

func (self CodecData) SPS() []byte {
	return self.RecordInfo.SPS[0]
}

func (self CodecData) PPS() []byte {
	return self.RecordInfo.PPS[0]
}

func (self CodecData) Width() int {
	return self.width
}

func (self CodecData) Height() int {
	return self.height
}

// Tag returns the RFC 6381 codec string, e.g. avc1.64001F.
func (self CodecData) Tag() string {
	return fmt.Sprintf("avc1.%02X%02X%02X",
		self.RecordInfo.AVCProfileIndication,
		self.RecordInfo.ProfileCompatibility,
		self.RecordInfo.AVCLevelIndication)
}

// NewCodecDataFromAVCDecoderConfRecord builds codec data from a raw avcC
// payload; width and height come from the container sample entry.
func NewCodecDataFromAVCDecoderConfRecord(record []byte, width, height int) (self CodecData, err error) {
	self.Record = record
	self.width = width
	self.height = height
	if _, err = (&self.RecordInfo).Unmarshal(record); err != nil {
		return
	}
	if len(self.RecordInfo.SPS) == 0 {
		err = fmt.Errorf("h264parser: no SPS found in AVCDecoderConfRecord")
		return
	}
	if len(self.RecordInfo.PPS) == 0 {
		err = fmt.Errorf("h264parser: no PPS found in AVCDecoderConfRecord")
		return
	}
	return
}
