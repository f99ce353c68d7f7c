// Package h265parser parses HEVC decoder configuration records (hvcC).
package h265parser

import (
	"fmt"

	"github.com/vodkit/mp4pipe/av"
	"github.com/vodkit/mp4pipe/utils/bits/pio"
)

var ErrDecconfInvalid = fmt.Errorf("h265parser: HEVCDecoderConfRecord invalid")

const (
	NAL_UNIT_VPS = 32
	NAL_UNIT_SPS = 33
	NAL_UNIT_PPS = 34
)

type HEVCDecoderConfRecord struct {
	GeneralProfileSpace uint8
	GeneralTierFlag     uint8
	GeneralProfileIDC   uint8
	GeneralLevelIDC     uint8
	LengthSizeMinusOne  uint8
	VPS                 [][]byte
	SPS                 [][]byte
	PPS                 [][]byte
}

func (self *HEVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < 23 {
		err = ErrDecconfInvalid
		return
	}
	self.GeneralProfileSpace = b[1] >> 6
	self.GeneralTierFlag = b[1] >> 5 & 0x01
	self.GeneralProfileIDC = b[1] & 0x1f
	self.GeneralLevelIDC = b[12]
	self.LengthSizeMinusOne = b[21] & 0x03
	arrays := int(b[22])
	n = 23
	for i := 0; i < arrays; i++ {
		if len(b) < n+3 {
			err = ErrDecconfInvalid
			return
		}
		naltype := b[n] & 0x3f
		nalcount := int(pio.U16BE(b[n+1:]))
		n += 3
		for j := 0; j < nalcount; j++ {
			if len(b) < n+2 {
				err = ErrDecconfInvalid
				return
			}
			nallen := int(pio.U16BE(b[n:]))
			n += 2
			if len(b) < n+nallen {
				err = ErrDecconfInvalid
				return
			}
			nal := b[n : n+nallen]
			n += nallen
			switch naltype {
			case NAL_UNIT_VPS:
				self.VPS = append(self.VPS, nal)
			case NAL_UNIT_SPS:
				self.SPS = append(self.SPS, nal)
			case NAL_UNIT_PPS:
				self.PPS = append(self.PPS, nal)
			}
		}
	}
	return
}

type CodecData struct {
	Record     []byte
	RecordInfo HEVCDecoderConfRecord
	width      int
	height     int
}

func (self CodecData) Type() av.CodecType {
	return av.H265
}

func (self CodecData) HEVCDecoderConfRecordBytes() []byte {
	return self.Record
}

func (self CodecData) SPS() []byte {
	return self.RecordInfo.SPS[0]
}

func (self CodecData) PPS() []byte {
	return self.RecordInfo.PPS[0]
}

func (self CodecData) VPS() []byte {
	return self.RecordInfo.VPS[0]
}

func (self CodecData) Width() int {
	return self.width
}

func (self CodecData) Height() int {
	return self.height
}

// Tag returns the RFC 6381 codec string, e.g. hev1.1.6.L93.B0.
func (self CodecData) Tag() string {
	return fmt.Sprintf("hev1.%d.6.L%d.B0",
		self.RecordInfo.GeneralProfileIDC,
		self.RecordInfo.GeneralLevelIDC)
}

// NewCodecDataFromHEVCDecoderConfRecord builds codec data from a raw hvcC
// payload; width and height come from the container sample entry.
func NewCodecDataFromHEVCDecoderConfRecord(record []byte, width, height int) (self CodecData, err error) {
	self.Record = record
	self.width = width
	self.height = height
	if _, err = (&self.RecordInfo).Unmarshal(record); err != nil {
		return
	}
	if len(self.RecordInfo.SPS) == 0 {
		err = fmt.Errorf("h265parser: no SPS found in HEVCDecoderConfRecord")
		return
	}
	return
}
