package sim

import (
	"net"
	"testing"
	"time"

	"avrcore/core"
	"avrcore/protocol"
)

func TestLinkAnswersCommands(t *testing.T) {
	m := newMachine(t)
	host, fw := net.Pipe()
	defer host.Close()
	l := m.AttachLink(fw)

	received := make(chan []byte, 8)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := host.Read(buf)
			if n > 0 {
				received <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				close(received)
				return
			}
		}
	}()

	msg, err := protocol.BuildCommand(protocol.MessageDest, 1, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, 0)
		protocol.EncodeVLQUint(o, 16)
	})
	if err != nil {
		t.Fatal(err)
	}
	go host.Write(msg)

	var (
		d      protocol.Deframer
		frames []protocol.Frame
		data   []byte
	)
	deadline := time.Now().Add(2 * time.Second)
	for len(frames) < 2 && time.Now().Before(deadline) {
		m.Idle()
		select {
		case b := <-received:
			data = append(data, b...)
			used := d.Decode(data, func(f protocol.Frame) {
				frames = append(frames, protocol.Frame{Sequence: f.Sequence, Payload: append([]byte(nil), f.Payload...)})
			})
			data = data[used:]
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want response and ack", len(frames))
	}

	payload := frames[0].Payload
	id, _ := protocol.DecodeVLQUint(&payload)
	offset, _ := protocol.DecodeVLQUint(&payload)
	chunk, err := protocol.DecodeVLQBytes(&payload)
	if id != 0 || offset != 0 || err != nil || len(chunk) != 16 {
		t.Errorf("identify_response id=%d offset=%d chunk=%d bytes, err=%v", id, offset, len(chunk), err)
	}
	if want := core.GetGlobalDictionary().GetChunk(0, 16); string(chunk) != string(want) {
		t.Errorf("chunk = %x, want %x", chunk, want)
	}
	if ack := frames[1]; len(ack.Payload) != 0 || ack.Sequence != protocol.NextSequence(protocol.MessageDest) {
		t.Errorf("ack = %+v", ack)
	}
	if l.HandlerErrors() != 0 {
		t.Errorf("handler errors = %d", l.HandlerErrors())
	}

	host.Close()
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Error("link did not stop after the host closed")
	}
}
