package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})
	if buf.Available() != 5 {
		t.Errorf("Available() = %d, want 5", buf.Available())
	}
	buf.Pop(2)
	if d := buf.Data(); len(d) != 3 || d[0] != 3 {
		t.Errorf("after Pop(2) Data() = %v", d)
	}
	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Pop past end left %d bytes", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	s := NewScratchOutput()
	s.Output([]byte{1, 2, 3})
	s.Output([]byte{4, 5})
	if s.CurPosition() != 5 {
		t.Errorf("CurPosition() = %d, want 5", s.CurPosition())
	}
	s.Update(0, 99)
	if s.Result()[0] != 99 {
		t.Errorf("Update did not patch byte 0")
	}
	s.Update(7, 1)
	if s.CurPosition() != 5 {
		t.Errorf("Update past end moved the cursor")
	}
	if got := s.DataSince(2); !bytes.Equal(got, []byte{3, 4, 5}) {
		t.Errorf("DataSince(2) = %v", got)
	}
	s.Reset()
	if s.CurPosition() != 0 || s.Overflowed() {
		t.Errorf("Reset left pos %d overflow %v", s.CurPosition(), s.Overflowed())
	}
	s.Output(make([]byte, MessageMax+1))
	if !s.Overflowed() || s.CurPosition() != MessageMax {
		t.Errorf("overflow not reported: pos %d", s.CurPosition())
	}
}

func TestFifoBuffer(t *testing.T) {
	f := NewFifoBuffer(10)
	if !f.IsEmpty() || f.Free() != 10 {
		t.Fatalf("new FIFO: empty %v free %d", f.IsEmpty(), f.Free())
	}

	if n := f.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Errorf("Write stored %d, want 5", n)
	}
	out := make([]byte, 3)
	if n := f.Read(out); n != 3 || !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Errorf("Read = %d %v", n, out)
	}
	f.Pop(1)
	if f.Available() != 1 {
		t.Errorf("Available() = %d, want 1", f.Available())
	}

	f.Reset()
	if n := f.Write(make([]byte, 12)); n != 10 {
		t.Errorf("Write into size-10 FIFO stored %d", n)
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	f := NewFifoBuffer(5)
	f.Write([]byte{1, 2, 3, 4})
	f.Read(make([]byte, 2))

	if n := f.Write([]byte{5, 6, 7}); n != 3 {
		t.Errorf("wrapped Write stored %d, want 3", n)
	}
	if got := f.Data(); !bytes.Equal(got, []byte{3, 4, 5, 6, 7}) {
		t.Errorf("Data() = %v", got)
	}
	all := make([]byte, 8)
	if n := f.Read(all); n != 5 || !bytes.Equal(all[:n], []byte{3, 4, 5, 6, 7}) {
		t.Errorf("Read = %v", all[:n])
	}
	if !f.IsEmpty() {
		t.Errorf("FIFO not empty after draining")
	}
}
