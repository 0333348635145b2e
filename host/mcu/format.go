package mcu

import (
	"errors"
	"fmt"
	"strings"

	"avrcore/protocol"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrArgCount       = errors.New("wrong number of arguments")
	ErrBadFormat      = errors.New("malformed message format")
)

type fieldType uint8

const (
	fieldUint fieldType = iota
	fieldInt
	fieldBytes
)

// Field is one parameter of a message format.
type Field struct {
	Name string
	Type fieldType
}

// Format is a command or response as declared in the dictionary, e.g.
// "query_exti line=%c".
type Format struct {
	ID     uint16
	Name   string
	Fields []Field
}

// Response is a decoded MCU-to-host message.
type Response struct {
	Name   string
	Values map[string]uint32
	Bytes  map[string][]byte
}

// Int returns a signed field.
func (r *Response) Int(name string) int32 {
	return int32(r.Values[name])
}

// Bool returns a field as a flag.
func (r *Response) Bool(name string) bool {
	return r.Values[name] != 0
}

func parseFormat(signature string, id int) (*Format, error) {
	parts := strings.Fields(signature)
	if len(parts) == 0 || id < 0 || id > 0xFFFF {
		return nil, fmt.Errorf("%w: %q", ErrBadFormat, signature)
	}
	f := &Format{ID: uint16(id), Name: parts[0]}
	for _, p := range parts[1:] {
		name, spec, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadFormat, signature)
		}
		var t fieldType
		switch spec {
		case "%u", "%c", "%hu":
			t = fieldUint
		case "%i", "%hi":
			t = fieldInt
		case "%s", "%*s", "%.*s":
			t = fieldBytes
		default:
			return nil, fmt.Errorf("%w: %q in %q", ErrBadFormat, spec, signature)
		}
		f.Fields = append(f.Fields, Field{Name: name, Type: t})
	}
	return f, nil
}

// Encode returns an argument writer for the transport. Byte fields are not
// accepted from the host side.
func (f *Format) Encode(args []uint32) (func(protocol.OutputBuffer), error) {
	if len(args) != len(f.Fields) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArgCount, f.Name, len(f.Fields), len(args))
	}
	for _, fld := range f.Fields {
		if fld.Type == fieldBytes {
			return nil, fmt.Errorf("%w: %s has a byte field", ErrBadFormat, f.Name)
		}
	}
	return func(output protocol.OutputBuffer) {
		for i, fld := range f.Fields {
			if fld.Type == fieldInt {
				protocol.EncodeVLQInt(output, int32(args[i]))
			} else {
				protocol.EncodeVLQUint(output, args[i])
			}
		}
	}, nil
}

// Decode parses the arguments that follow the command ID.
func (f *Format) Decode(data []byte) (*Response, error) {
	r := &Response{Name: f.Name, Values: make(map[string]uint32, len(f.Fields))}
	for _, fld := range f.Fields {
		switch fld.Type {
		case fieldBytes:
			b, err := protocol.DecodeVLQBytes(&data)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", f.Name, fld.Name, err)
			}
			if r.Bytes == nil {
				r.Bytes = make(map[string][]byte)
			}
			r.Bytes[fld.Name] = b
		case fieldInt:
			v, err := protocol.DecodeVLQInt(&data)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", f.Name, fld.Name, err)
			}
			r.Values[fld.Name] = uint32(v)
		default:
			v, err := protocol.DecodeVLQUint(&data)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", f.Name, fld.Name, err)
			}
			r.Values[fld.Name] = v
		}
	}
	return r, nil
}
