package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultAckTimeout bounds SendCommand when ctx carries no deadline.
const DefaultAckTimeout = 2 * time.Second

// ResponseHandler observes every response frame received by the host.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// Message is a frame received by the host.
type Message struct {
	Sequence uint8
	Payload  []byte
}

// CommandID decodes the leading command ID of the payload.
func (m *Message) CommandID() (uint16, []byte, error) {
	data := m.Payload
	id, err := DecodeVLQUint(&data)
	return uint16(id), data, err
}

// HostTransport is the host side of the link: it sends commands, waits
// for their ACK and collects responses from a background reader.
type HostTransport struct {
	port       io.ReadWriteCloser
	currentSeq uint32 // atomic

	ackChan      chan *Message
	responseChan chan *Message

	handlerMu       sync.RWMutex
	responseHandler ResponseHandler

	writeMutex sync.Mutex
	closeOnce  sync.Once
	stopChan   chan struct{}
	doneChan   chan struct{}
	readErr    error
}

// NewHostTransport starts a reader on port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		ackChan:      make(chan *Message, 1),
		responseChan: make(chan *Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits for its ACK.
func (t *HostTransport) SendCommand(ctx context.Context, cmdID uint16, args func(output OutputBuffer)) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultAckTimeout)
		defer cancel()
	}

	seq := uint8(atomic.LoadUint32(&t.currentSeq))
	msg, err := BuildCommand(seq, cmdID, args)
	if err != nil {
		return err
	}
	if err := t.writeMessage(msg); err != nil {
		return fmt.Errorf("write command %d: %w", cmdID, err)
	}
	if err := t.waitForAck(ctx, seq); err != nil {
		return fmt.Errorf("command %d: %w", cmdID, err)
	}
	return nil
}

// Call sends a command and returns the first response whose command ID
// is respID. Other responses are discarded.
func (t *HostTransport) Call(ctx context.Context, cmdID uint16, args func(output OutputBuffer), respID uint16) (*Message, error) {
	t.drainResponses()
	if err := t.SendCommand(ctx, cmdID, args); err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultAckTimeout)
		defer cancel()
	}
	for {
		msg, err := t.ReceiveResponse(ctx)
		if err != nil {
			return nil, err
		}
		if id, _, err := msg.CommandID(); err == nil && id == respID {
			return msg, nil
		}
	}
}

// BuildCommand encodes a complete command frame with sequence seq.
func BuildCommand(seq uint8, cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	if scratch.Overflowed() {
		return nil, ErrMessageTooLong
	}
	return AppendFrame(nil, seq, scratch.Result())
}

func (t *HostTransport) writeMessage(msg []byte) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	n, err := t.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return io.ErrShortWrite
	}
	return nil
}

func (t *HostTransport) waitForAck(ctx context.Context, sent uint8) error {
	want := NextSequence(sent)
	for {
		select {
		case ack := <-t.ackChan:
			// The ACK names the sequence the MCU expects next. Adopting it
			// keeps the link usable after a lost frame.
			atomic.StoreUint32(&t.currentSeq, uint32(ack.Sequence))
			if ack.Sequence != want {
				return fmt.Errorf("%w: want 0x%02x, got 0x%02x", ErrSequence, want, ack.Sequence)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-t.doneChan:
			return t.closedErr()
		}
	}
}

// ReceiveResponse returns the next response frame.
func (t *HostTransport) ReceiveResponse(ctx context.Context) (*Message, error) {
	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.doneChan:
		return nil, t.closedErr()
	}
}

// SetResponseHandler installs a callback run from the reader goroutine for
// every response.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.responseHandler = handler
	t.handlerMu.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	var (
		deframer Deframer
		pending  []byte
		buffer   = make([]byte, 256)
	)
	for {
		n, err := t.port.Read(buffer)
		if n > 0 {
			pending = append(pending, buffer[:n]...)
			used := deframer.Decode(pending, t.dispatchMessage)
			pending = append(pending[:0], pending[used:]...)
		}
		if err != nil {
			select {
			case <-t.stopChan:
			default:
				t.readErr = err
			}
			return
		}
	}
}

func (t *HostTransport) dispatchMessage(f Frame) {
	msg := &Message{Sequence: f.Sequence, Payload: append([]byte(nil), f.Payload...)}

	if len(msg.Payload) == 0 {
		select {
		case <-t.ackChan:
		default:
		}
		t.ackChan <- msg
		return
	}

	t.handlerMu.RLock()
	handler := t.responseHandler
	t.handlerMu.RUnlock()
	if handler != nil {
		if id, data, err := msg.CommandID(); err == nil {
			_ = handler(id, &data)
		}
	}

	for {
		select {
		case t.responseChan <- msg:
			return
		default:
		}
		// Full: drop the oldest.
		select {
		case <-t.responseChan:
		default:
		}
	}
}

func (t *HostTransport) drainResponses() {
	for {
		select {
		case <-t.responseChan:
		default:
			return
		}
	}
}

func (t *HostTransport) closedErr() error {
	if t.readErr != nil && !errors.Is(t.readErr, io.EOF) {
		return fmt.Errorf("%w: %v", ErrClosed, t.readErr)
	}
	return ErrClosed
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Done is closed when the reader stops.
func (t *HostTransport) Done() <-chan struct{} {
	return t.doneChan
}

// Reset restarts the sequence and drops queued messages.
func (t *HostTransport) Reset() {
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	select {
	case <-t.ackChan:
	default:
	}
	t.drainResponses()
}

// GetCurrentSequence returns the sequence the next command will carry.
func (t *HostTransport) GetCurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
