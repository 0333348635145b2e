package mcu

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"avrcore/host/serial"
	"avrcore/protocol"
)

// identify and identify_response are fixed so the dictionary can be read
// before anything else is known.
const (
	identifyID         = 1
	identifyResponseID = 0
	chunkSize          = 40
	maxDictionary      = 64 * 1024
)

// ResetDelay covers the bootloader that runs after the auto-reset an Uno
// performs when its port is opened.
const ResetDelay = 2 * time.Second

var ErrNoDictionary = errors.New("dictionary not loaded")

// MCU is a connection to an avrcore firmware.
type MCU struct {
	transport *protocol.HostTransport
	port      io.ReadWriteCloser
	log       *log.Logger

	mu             sync.RWMutex
	dictionary     *Dictionary
	dictionaryData []byte
	commands       map[string]*Format
	responses      map[string]*Format
	byID           map[uint16]*Format
	handlers       map[string][]func(*Response)
}

// Dictionary represents the parsed MCU dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// New wraps an open port. A nil logger discards messages.
func New(port io.ReadWriteCloser, logger *log.Logger) *MCU {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := &MCU{
		transport: protocol.NewHostTransport(port),
		port:      port,
		log:       logger,
		handlers:  make(map[string][]func(*Response)),
	}
	m.transport.SetResponseHandler(m.handleResponse)
	return m
}

// Connect opens the serial port in cfg and waits out the board reset.
func Connect(ctx context.Context, cfg *serial.Config, logger *log.Logger) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	select {
	case <-time.After(ResetDelay):
	case <-ctx.Done():
		port.Close()
		return nil, ctx.Err()
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush %s: %w", cfg.Device, err)
	}
	return New(port, logger), nil
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	return m.transport.Close()
}

// Done is closed when the link drops.
func (m *MCU) Done() <-chan struct{} {
	return m.transport.Done()
}

// Identify reads the dictionary in chunks, inflates and parses it.
func (m *MCU) Identify(ctx context.Context) error {
	m.transport.Reset()

	var raw bytes.Buffer
	for offset := uint32(0); ; {
		chunk, err := m.identifyChunk(ctx, offset)
		if err != nil {
			return fmt.Errorf("dictionary chunk at offset %d: %w", offset, err)
		}
		raw.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < chunkSize {
			break
		}
		if raw.Len() > maxDictionary {
			return fmt.Errorf("dictionary exceeds %d bytes", maxDictionary)
		}
	}
	m.log.Printf("[mcu] dictionary retrieved: %d bytes", raw.Len())

	data := raw.Bytes()
	if len(data) >= 2 && data[0] == 0x78 {
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("inflate dictionary: %w", err)
		}
		inflated, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return fmt.Errorf("inflate dictionary: %w", err)
		}
		m.log.Printf("[mcu] dictionary inflated: %d -> %d bytes", len(data), len(inflated))
		data = inflated
	}
	return m.load(data)
}

func (m *MCU) identifyChunk(ctx context.Context, offset uint32) ([]byte, error) {
	for {
		resp, err := m.transport.Call(ctx, identifyID, func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, offset)
			protocol.EncodeVLQUint(output, chunkSize)
		}, identifyResponseID)
		if err != nil {
			return nil, err
		}
		_, payload, _ := resp.CommandID()
		respOffset, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("decode offset: %w", err)
		}
		data, err := protocol.DecodeVLQBytes(&payload)
		if err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
		// A late reply to an earlier request; ask again.
		if respOffset != offset {
			m.log.Printf("[mcu] offset mismatch: want %d, got %d", offset, respOffset)
			continue
		}
		return data, nil
	}
}

func (m *MCU) load(data []byte) error {
	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}
	commands := make(map[string]*Format, len(dict.Commands))
	responses := make(map[string]*Format, len(dict.Responses))
	byID := make(map[uint16]*Format, len(dict.Responses))
	for sig, id := range dict.Commands {
		f, err := parseFormat(sig, id)
		if err != nil {
			return err
		}
		commands[f.Name] = f
	}
	for sig, id := range dict.Responses {
		f, err := parseFormat(sig, id)
		if err != nil {
			return err
		}
		responses[f.Name] = f
		byID[f.ID] = f
	}

	m.mu.Lock()
	m.dictionary = dict
	m.dictionaryData = data
	m.commands = commands
	m.responses = responses
	m.byID = byID
	m.mu.Unlock()
	return nil
}

// Dictionary returns the parsed dictionary or nil before Identify.
func (m *MCU) Dictionary() *Dictionary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dictionary
}

// DictionaryRaw returns the inflated dictionary JSON.
func (m *MCU) DictionaryRaw() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dictionaryData
}

// Constant returns a config constant from the dictionary.
func (m *MCU) Constant(name string) (string, bool) {
	d := m.Dictionary()
	if d == nil {
		return "", false
	}
	v, ok := d.Config[name]
	return v, ok
}

// Enum looks up value in enumeration name.
func (m *MCU) Enum(name, value string) (uint32, bool) {
	d := m.Dictionary()
	if d == nil {
		return 0, false
	}
	v, ok := d.Enumerations[name][value]
	return uint32(v), ok
}

// ClockFrequency returns CLOCK_FREQ, the tick rate of clock values.
func (m *MCU) ClockFrequency() (uint32, error) {
	s, ok := m.Constant("CLOCK_FREQ")
	if !ok {
		return 0, fmt.Errorf("%w: no CLOCK_FREQ", ErrNoDictionary)
	}
	f, err := strconv.ParseUint(s, 10, 32)
	if err != nil || f == 0 {
		return 0, fmt.Errorf("bad CLOCK_FREQ %q", s)
	}
	return uint32(f), nil
}

func (m *MCU) lookup(table func() map[string]*Format, name string) (*Format, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dictionary == nil {
		return nil, ErrNoDictionary
	}
	f, ok := table()[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return f, nil
}

func (m *MCU) command(name string) (*Format, error) {
	return m.lookup(func() map[string]*Format { return m.commands }, name)
}

func (m *MCU) response(name string) (*Format, error) {
	return m.lookup(func() map[string]*Format { return m.responses }, name)
}

// Send sends a command by name and waits for its ACK.
func (m *MCU) Send(ctx context.Context, name string, args ...uint32) error {
	cmd, err := m.command(name)
	if err != nil {
		return err
	}
	enc, err := cmd.Encode(args)
	if err != nil {
		return err
	}
	return m.transport.SendCommand(ctx, cmd.ID, enc)
}

// Query sends a command and decodes the first reply named response.
func (m *MCU) Query(ctx context.Context, name, response string, args ...uint32) (*Response, error) {
	cmd, err := m.command(name)
	if err != nil {
		return nil, err
	}
	resp, err := m.response(response)
	if err != nil {
		return nil, err
	}
	enc, err := cmd.Encode(args)
	if err != nil {
		return nil, err
	}
	msg, err := m.transport.Call(ctx, cmd.ID, enc, resp.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	_, data, _ := msg.CommandID()
	return resp.Decode(data)
}

// Collect sends a command and gathers replies named response until none
// arrives for quiet.
func (m *MCU) Collect(ctx context.Context, quiet time.Duration, name, response string, args ...uint32) ([]*Response, error) {
	if _, err := m.response(response); err != nil {
		return nil, err
	}
	var (
		mu  sync.Mutex
		out []*Response
		got = make(chan struct{}, 1)
	)
	remove := m.OnResponse(response, func(r *Response) {
		mu.Lock()
		out = append(out, r)
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	})
	defer remove()

	if err := m.Send(ctx, name, args...); err != nil {
		return nil, err
	}
	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		select {
		case <-got:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(quiet)
		case <-timer.C:
			mu.Lock()
			defer mu.Unlock()
			return out, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// OnResponse calls f from the reader goroutine for every response named
// name. The returned func removes it.
func (m *MCU) OnResponse(name string, f func(*Response)) (remove func()) {
	m.mu.Lock()
	m.handlers[name] = append(m.handlers[name], f)
	idx := len(m.handlers[name]) - 1
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		if hs := m.handlers[name]; idx < len(hs) {
			hs[idx] = nil
		}
		m.mu.Unlock()
	}
}

func (m *MCU) handleResponse(cmdID uint16, data *[]byte) error {
	m.mu.RLock()
	f, ok := m.byID[cmdID]
	var hs []func(*Response)
	if ok {
		hs = slices.Clone(m.handlers[f.Name])
	}
	m.mu.RUnlock()
	if !ok || len(hs) == 0 {
		return nil
	}
	r, err := f.Decode(*data)
	if err != nil {
		m.log.Printf("[mcu] %s: %v", f.Name, err)
		return err
	}
	for _, h := range hs {
		if h != nil {
			h(r)
		}
	}
	return nil
}

// WriteSummary prints the dictionary in sorted order.
func (m *MCU) WriteSummary(w io.Writer) {
	d := m.Dictionary()
	if d == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	keys := maps.Keys(d.Config)
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}
	for _, sec := range []struct {
		title string
		table map[string]int
	}{{"Commands", d.Commands}, {"Responses", d.Responses}} {
		fmt.Fprintf(w, "\n%s (%d):\n", sec.title, len(sec.table))
		sigs := maps.Keys(sec.table)
		slices.SortFunc(sigs, func(a, b string) bool { return sec.table[a] < sec.table[b] })
		for _, s := range sigs {
			fmt.Fprintf(w, "  [%d] %s\n", sec.table[s], s)
		}
	}
	if len(d.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(d.Enumerations))
		names := maps.Keys(d.Enumerations)
		slices.Sort(names)
		for _, n := range names {
			fmt.Fprintf(w, "  %s: %d values\n", n, len(d.Enumerations[n]))
		}
	}
}
