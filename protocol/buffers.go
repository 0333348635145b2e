package protocol

// InputBuffer is received data awaiting deframing.
type InputBuffer interface {
	Data() []byte
	Available() int
	Pop(n int)
}

// OutputBuffer accumulates outgoing frames. Update and DataSince let the
// encoder patch the length byte and checksum a frame in place.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over a byte slice
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	s.data = s.data[min(n, len(s.data)):]
}

// ScratchOutput is a fixed OutputBuffer. Writes past MessageMax are
// truncated and reported by Overflowed.
type ScratchOutput struct {
	buf      [MessageMax]byte
	pos      int
	overflow bool
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	if n < len(data) {
		s.overflow = true
	}
}

func (s *ScratchOutput) CurPosition() int { return s.pos }

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset.
func (s *ScratchOutput) Result() []byte { return s.buf[:s.pos] }

// Overflowed reports whether any write was truncated.
func (s *ScratchOutput) Overflowed() bool { return s.overflow }

func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.overflow = false
}

// FifoBuffer is a byte ring used for serial receive and transmit. It is
// not safe for concurrent use.
type FifoBuffer struct {
	buf   []byte
	head  int // next byte to read
	count int
	lin   []byte
}

// NewFifoBuffer creates a FIFO holding up to capacity bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count stored.
func (f *FifoBuffer) Write(data []byte) int {
	n := min(len(data), f.Free())
	for i := 0; i < n; i++ {
		f.buf[(f.head+f.count+i)%len(f.buf)] = data[i]
	}
	f.count += n
	return n
}

// Read moves up to len(data) bytes out of the FIFO.
func (f *FifoBuffer) Read(data []byte) int {
	n := copy(data, f.Data())
	f.Pop(n)
	return n
}

func (f *FifoBuffer) Available() int { return f.count }
func (f *FifoBuffer) Free() int      { return len(f.buf) - f.count }
func (f *FifoBuffer) IsEmpty() bool  { return f.count == 0 }

// Data returns the buffered bytes as one slice. When the content wraps it
// is linearised into a buffer owned by the FIFO, valid until the next call.
func (f *FifoBuffer) Data() []byte {
	end := f.head + f.count
	if end <= len(f.buf) {
		return f.buf[f.head:end]
	}
	f.lin = append(f.lin[:0], f.buf[f.head:]...)
	f.lin = append(f.lin, f.buf[:end-len(f.buf)]...)
	return f.lin
}

func (f *FifoBuffer) Pop(n int) {
	n = min(n, f.count)
	f.head = (f.head + n) % len(f.buf)
	f.count -= n
	if f.count == 0 {
		f.head = 0
	}
}

func (f *FifoBuffer) Reset() {
	f.head, f.count = 0, 0
}
