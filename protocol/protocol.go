// Package protocol implements the framed serial protocol spoken between the
// firmware and the host tools: VLQ-encoded integers inside CRC16-protected
// frames with a 4-bit sequence number.
package protocol

import "errors"

// Version of the wire protocol.
const Version = "1"

// Frame layout: len seq payload... crc_hi crc_lo sync
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F

	// MessageMax sizes the scratch buffer, which may hold several frames.
	MessageMax = 512
)

var (
	ErrMessageTooLong = errors.New("message exceeds maximum frame length")
	ErrClosed         = errors.New("transport closed")
	ErrSequence       = errors.New("ack sequence mismatch")
)

// Frame is one validated frame.
type Frame struct {
	Sequence uint8
	Payload  []byte
}

// NextSequence returns the sequence that follows seq, keeping the
// destination bits.
func NextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

// AppendFrame appends a complete frame carrying payload to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	n := MessageLengthMin + len(payload)
	if n > MessageLengthMax {
		return dst, ErrMessageTooLong
	}
	start := len(dst)
	dst = append(dst, uint8(n), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync), nil
}
