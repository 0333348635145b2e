package core

import (
	"bytes"
	"sync"

	"golang.org/x/exp/slices"

	"avrcore/tinycompress"
)

// Version is reported in the dictionary.
const Version = "avrcore-0.1.0"

// Constant is a firmware constant exposed to the host
type Constant struct {
	Name  string
	Value interface{}
}

// Enumeration maps value names to their index
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary describes the firmware to the host: version, constants,
// commands, responses and enumerations, as zlib-wrapped JSON.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cached        []byte
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a new dictionary over cmdReg
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       Version,
		buildVersions: "go-tinygo",
	}
}

// GetGlobalDictionary returns the dictionary served by identify
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

// RegisterConstant registers a constant in the dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration registers an enumeration in the dictionary
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

// AddConstant adds a constant to the dictionary
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cached = nil
}

// AddEnumeration adds an enumeration to the dictionary
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerations[name] = &Enumeration{Name: name, Values: slices.Clone(values)}
	d.cached = nil
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
}

// Invalidate drops the cached dictionary after commands change.
func (d *Dictionary) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

// Generate returns the compressed dictionary, building it on first use.
func (d *Dictionary) Generate() []byte {
	// Read the registry before taking the dictionary lock so the two locks
	// are never held together.
	commands := d.commandReg.All()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil {
		var buf bytes.Buffer
		w := tinycompress.NewWriter(&buf)
		w.Write(d.buildJSONLocked(commands))
		w.Close()
		d.cached = buf.Bytes()
	}
	return d.cached
}

// JSON returns the uncompressed dictionary.
func (d *Dictionary) JSON() []byte {
	commands := d.commandReg.All()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.buildJSONLocked(commands)
}

func appendQuoted(b []byte, s string) []byte {
	b = append(b, '"')
	b = append(b, s...)
	return append(b, '"')
}

// buildJSONLocked renders the dictionary (caller must hold the lock)
func (d *Dictionary) buildJSONLocked(commands []*Command) []byte {
	result := make([]byte, 0, 512)

	result = append(result, `{"version":`...)
	result = appendQuoted(result, d.version)
	result = append(result, `,"build_versions":`...)
	result = appendQuoted(result, d.buildVersions)

	result = append(result, `,"config":{`...)
	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	slices.Sort(names)
	for i, name := range names {
		if i > 0 {
			result = append(result, ',')
		}
		result = appendQuoted(result, name)
		result = append(result, ':')
		result = appendQuoted(result, valueToString(d.constants[name].Value))
	}

	for _, section := range []struct {
		key      string
		response bool
	}{{`},"commands":{`, false}, {`},"responses":{`, true}} {
		result = append(result, section.key...)
		first := true
		for _, cmd := range commands {
			if cmd.IsResponse() != section.response {
				continue
			}
			if !first {
				result = append(result, ',')
			}
			result = appendQuoted(result, cmd.Signature())
			result = append(result, ':')
			result = append(result, utoa(uint32(cmd.ID))...)
			first = false
		}
	}
	result = append(result, '}')

	if len(d.enumerations) > 0 {
		result = append(result, `,"enumerations":{`...)
		names = names[:0]
		for name := range d.enumerations {
			names = append(names, name)
		}
		slices.Sort(names)
		for i, name := range names {
			if i > 0 {
				result = append(result, ',')
			}
			result = appendQuoted(result, name)
			result = append(result, ":{"...)
			first := true
			for idx, value := range d.enumerations[name].Values {
				if value == "" {
					continue
				}
				if !first {
					result = append(result, ',')
				}
				result = appendQuoted(result, value)
				result = append(result, ':')
				result = append(result, itoa(idx)...)
				first = false
			}
			result = append(result, '}')
		}
		result = append(result, '}')
	}

	return append(result, '}')
}

// GetChunk returns a copy of up to count bytes of the compressed
// dictionary starting at offset.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}
