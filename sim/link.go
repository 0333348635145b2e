package sim

import (
	"io"

	"avrcore/core"
	"avrcore/protocol"
)

// Link carries the firmware command protocol between the machine and a
// host over a byte stream, standing in for the UART.
type Link struct {
	m   *Machine
	rw  io.ReadWriter
	in  *protocol.FifoBuffer
	out *protocol.ScratchOutput
	tr  *protocol.Transport

	done chan struct{}
	err  error
}

// AttachLink registers the firmware command set and starts reading rw.
// Received bytes are handed to the machine goroutine with Post, so commands
// run between passes of the application loop, as they do on the target.
func (m *Machine) AttachLink(rw io.ReadWriter) *Link {
	l := &Link{
		m:    m,
		rw:   rw,
		in:   protocol.NewFifoBuffer(256),
		out:  protocol.NewScratchOutput(),
		done: make(chan struct{}),
	}
	l.tr = protocol.NewTransport(l.out, func(cmdID uint16, data *[]byte) error {
		err := core.DispatchCommand(cmdID, data)
		if err != nil {
			m.log.Printf("[link] command %d: %v", cmdID, err)
		}
		return err
	})
	l.tr.SetResetCallback(func() {
		m.log.Print("[link] host restarted sequence")
	})
	core.InitCoreCommands()
	core.SetGlobalTransport(l.tr)
	go l.readLoop()
	return l
}

func (l *Link) readLoop() {
	defer close(l.done)
	buf := make([]byte, 64)
	for {
		n, err := l.rw.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			l.m.Post(func() { l.receive(chunk) })
		}
		if err != nil {
			if err != io.EOF {
				l.err = err
			}
			return
		}
	}
}

func (l *Link) receive(chunk []byte) {
	for len(chunk) > 0 {
		n := l.in.Write(chunk)
		chunk = chunk[n:]
		l.tr.Receive(l.in)
		if n == 0 && l.in.Free() == 0 {
			// No frame fits; drop the backlog and let the deframer resync.
			l.in.Reset()
		}
	}
	l.flush()
}

func (l *Link) flush() {
	if res := l.out.Result(); len(res) > 0 {
		if _, err := l.rw.Write(res); err != nil {
			l.m.log.Printf("[link] write: %v", err)
		}
		l.out.Reset()
	}
}

// Synchronized reports whether the deframer is aligned on frame boundaries.
func (l *Link) Synchronized() bool {
	return l.tr.Synchronized()
}

// HandlerErrors counts commands that failed.
func (l *Link) HandlerErrors() uint32 {
	return l.tr.HandlerErrors
}

// Done is closed when the stream ends. Err then reports why, nil for EOF.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Err returns the read error that stopped the link, if any.
func (l *Link) Err() error {
	<-l.done
	return l.err
}
