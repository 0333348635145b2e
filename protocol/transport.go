package protocol

import "sync/atomic"

// CommandHandler decodes and runs one command from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware side of the link. It acknowledges every frame
// with the sequence it expects next, runs in-sequence frames and answers
// with frames carrying that same sequence.
type Transport struct {
	nextSequence uint32 // atomic, 0x10-0x1F
	deframer     Deframer
	output       OutputBuffer
	handler      CommandHandler

	resetCallback func()
	flushCallback func()

	// HandlerErrors counts commands whose handler returned an error.
	HandlerErrors uint32
}

// NewTransport creates a transport writing to output
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
	t.deframer.OnResync = t.encodeAckNak
	return t
}

// Receive consumes every complete frame in input.
func (t *Transport) Receive(input InputBuffer) {
	n := t.deframer.Decode(input.Data(), t.handleFrame)
	if n > 0 {
		input.Pop(n)
	}
}

func (t *Transport) handleFrame(f Frame) {
	expected := uint8(atomic.LoadUint32(&t.nextSequence))
	if f.Sequence == MessageDest && expected != MessageDest {
		// Host restarted its sequence.
		atomic.StoreUint32(&t.nextSequence, MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}
	if f.Sequence == expected {
		atomic.StoreUint32(&t.nextSequence, uint32(NextSequence(expected)))
		t.parseFrame(f.Payload)
	}
	// Out-of-sequence frames are acked with the expected sequence, which
	// the host treats as a NAK.
	t.encodeAckNak()
}

func (t *Transport) parseFrame(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.deframer.reject()
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.deframer.reject()
			return
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			t.HandlerErrors++
			return
		}
	}
}

func (t *Transport) encodeAckNak() {
	var ack [MessageLengthMin]byte
	frame, _ := AppendFrame(ack[:0], uint8(atomic.LoadUint32(&t.nextSequence)), nil)
	t.output.Output(frame)
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one frame whose payload is produced by frameData.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, uint8(atomic.LoadUint32(&t.nextSequence))})
	frameData(t.output)

	n := len(t.output.DataSince(start)) + MessageTrailerSize
	t.output.Update(start, uint8(n))
	crc := CRC16(t.output.DataSince(start))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// SendCommand sends cmdID followed by the arguments written by args.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state.
func (t *Transport) Reset() {
	t.deframer.Reset()
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// Synchronized reports whether the receive side is aligned on frames.
func (t *Transport) Synchronized() bool {
	return t.deframer.Synchronized()
}

// SetResetCallback sets the function run when the host restarts.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets the function that pushes an ACK out immediately.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
