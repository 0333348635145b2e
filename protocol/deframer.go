package protocol

// Deframer splits a byte stream into validated frames. After a corrupt
// frame it discards input up to the next sync byte.
type Deframer struct {
	desynced bool

	// OnResync runs each time synchronisation is regained.
	OnResync func()

	// Errors counts rejected frames.
	Errors uint32
}

// Synchronized reports whether the deframer is aligned on a frame boundary.
func (d *Deframer) Synchronized() bool {
	return !d.desynced
}

// Reset returns to the synchronised state.
func (d *Deframer) Reset() {
	d.desynced = false
}

// Decode calls emit for every complete frame in data and returns the number
// of bytes consumed. Frame payloads alias data.
func (d *Deframer) Decode(data []byte, emit func(Frame)) int {
	total := len(data)
	for len(data) > 0 {
		if d.desynced {
			i := indexSync(data)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			d.desynced = false
			if d.OnResync != nil {
				d.OnResync()
			}
			continue
		}
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}
		n := int(data[MessagePositionLen])
		seq := data[MessagePositionSeq]
		if n < MessageLengthMin || n > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
			d.reject()
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-MessageTrailerSync] != MessageValueSync {
			d.reject()
			continue
		}
		crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
		if crc != CRC16(data[:n-MessageTrailerSize]) {
			d.reject()
			continue
		}
		f := Frame{Sequence: seq, Payload: data[MessageHeaderSize : n-MessageTrailerSize]}
		data = data[n:]
		emit(f)
	}
	return total - len(data)
}

func (d *Deframer) reject() {
	d.desynced = true
	d.Errors++
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}
