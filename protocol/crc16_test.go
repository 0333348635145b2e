package protocol

import "testing"

// crc16Bitwise is the reflected CCITT polynomial computed one bit at a time.
func crc16Bitwise(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

func TestCRC16(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0xFF},
		{5, MessageDest},
		[]byte("123456789"),
		{0x10, 0x11, 0x7E, 0x7E, 0x00, 0xAB},
	}
	for _, in := range inputs {
		if got, want := CRC16(in), crc16Bitwise(in); got != want {
			t.Errorf("CRC16(% x) = %04X, want %04X", in, got, want)
		}
	}
	if got := CRC16([]byte("123456789")); got != 0x6F91 {
		t.Errorf("check value = %04X, want 6F91", got)
	}
}

func TestCRC16Update(t *testing.T) {
	data := []byte("uptime 00:01:05")
	whole := CRC16(data)
	split := CRC16Update(CRC16(data[:6]), data[6:])
	if whole != split {
		t.Errorf("incremental %04X != whole %04X", split, whole)
	}
}
