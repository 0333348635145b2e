package protocol

import (
	"bytes"
	"math"
	"testing"
)

func TestVLQRoundTripInt(t *testing.T) {
	values := []int32{
		0, 1, -1, 95, 96, -32, -33, 127, -128, 1000, -1000,
		12287, 12288, 65535, -65535, 1000000, -1000000,
		math.MaxInt32, math.MinInt32,
	}

	for _, want := range values {
		data := EncodeVLQ(want)
		rest := data
		got, err := DecodeVLQInt(&rest)
		if err != nil {
			t.Errorf("DecodeVLQInt(% x) for %d: %v", data, want, err)
			continue
		}
		if got != want {
			t.Errorf("round trip %d: got %d (encoded % x)", want, got, data)
		}
		if len(rest) != 0 {
			t.Errorf("round trip %d left %d bytes", want, len(rest))
		}
	}
}

func TestVLQUintRoundTrip(t *testing.T) {
	for _, want := range []uint32{0, 1, 127, 128, 255, 1000, 65535, 1000000, math.MaxUint32} {
		out := NewScratchOutput()
		EncodeVLQUint(out, want)
		data := out.Result()
		got, err := DecodeVLQUint(&data)
		if err != nil || got != want {
			t.Errorf("uint %d: got %d, err %v", want, got, err)
		}
	}
}

func TestVLQEncoding(t *testing.T) {
	tests := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{95, []byte{0x5F}},
		{96, []byte{0x80, 0x60}},
		{-1, []byte{0x7F}},
		{-32, []byte{0x60}},
		{-33, []byte{0xFF, 0x5F}},
	}
	for _, tt := range tests {
		if got := EncodeVLQ(tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeVLQ(%d) = % x, want % x", tt.v, got, tt.want)
		}
	}
}

func TestVLQLength(t *testing.T) {
	tests := []struct {
		v    int32
		want int
	}{
		{0, 1}, {95, 1}, {96, 2}, {12287, 2}, {12288, 3},
		{-4096, 2}, {-4097, 3}, {math.MinInt32, 5}, {math.MaxInt32, 5},
	}
	for _, tt := range tests {
		if n := len(EncodeVLQ(tt.v)); n != tt.want {
			t.Errorf("len(EncodeVLQ(%d)) = %d, want %d", tt.v, n, tt.want)
		}
		_, used, err := DecodeVLQ(EncodeVLQ(tt.v))
		if err != nil || used != tt.want {
			t.Errorf("DecodeVLQ(%d) used %d bytes, err %v", tt.v, used, err)
		}
	}
}

func TestVLQBytesAndString(t *testing.T) {
	for i, want := range [][]byte{{}, {0x01}, {0xFF, 0xFE, 0xFD}, make([]byte, 50)} {
		out := NewScratchOutput()
		EncodeVLQBytes(out, want)
		data := out.Result()
		got, err := DecodeVLQBytes(&data)
		if err != nil || !bytes.Equal(got, want) {
			t.Errorf("case %d: got % x, err %v", i, got, err)
		}
	}

	out := NewScratchOutput()
	EncodeVLQString(out, "HH:MM:SS")
	data := out.Result()
	if s, err := DecodeVLQString(&data); err != nil || s != "HH:MM:SS" {
		t.Errorf("string: got %q, err %v", s, err)
	}
}

func TestVLQErrors(t *testing.T) {
	data := []byte{0x80}
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("truncated: got %v, want ErrBufferTooSmall", err)
	}
	if len(data) != 1 {
		t.Errorf("failed decode consumed input")
	}

	data = []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("overlong: got %v, want ErrInvalidVLQ", err)
	}

	data = []byte{0x05, 0x01}
	if _, err := DecodeVLQBytes(&data); err != ErrBufferTooSmall {
		t.Errorf("short bytes: got %v, want ErrBufferTooSmall", err)
	}
}
