package core

import (
	"errors"
	"sync"

	"avrcore/protocol"
)

// ResponseSender transmits MCU-to-host frames. *protocol.Transport
// implements it.
type ResponseSender interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

var (
	ErrInvalidLine    = errors.New("invalid EXTI line")
	ErrInvalidTrigger = errors.New("invalid trigger")
	ErrInvalidPin     = errors.New("invalid pin")
	ErrUnknownLatch   = errors.New("unknown latch oid")
)

const maxLatches = 4

// NoLatch is the oid returned when the latch table is full. query_latch
// rejects it like any unregistered oid.
const NoLatch uint8 = 0xFF

var (
	latchMu sync.Mutex
	latches [maxLatches]*EventLatch
	nLatch  uint8
)

// RegisterLatch exposes l to query_latch and returns its oid.
func RegisterLatch(l *EventLatch) uint8 {
	latchMu.Lock()
	defer latchMu.Unlock()
	for i := uint8(0); i < nLatch; i++ {
		if latches[i] == l {
			return i
		}
	}
	if nLatch == maxLatches {
		precondition("too many latches")
		return NoLatch
	}
	latches[nLatch] = l
	nLatch++
	return nLatch - 1
}

func lookupLatch(oid uint32) *EventLatch {
	latchMu.Lock()
	defer latchMu.Unlock()
	if oid >= uint32(nLatch) {
		return nil
	}
	return latches[oid]
}

// InitCoreCommands registers the firmware command set. identify_response
// and identify must stay first: hosts assume IDs 0 and 1 before they have
// read the dictionary.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify)

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterCommand("get_clock", "", handleGetClock)
	RegisterResponse("clock", "clock=%u")

	RegisterCommand("config_exti", "line=%c trigger=%c", handleConfigExti)
	RegisterCommand("exti_disable", "line=%c", handleExtiDisable)
	RegisterCommand("query_exti", "line=%c", handleQueryExti)
	RegisterResponse("exti_state", "line=%c enabled=%c trigger=%c")

	RegisterCommand("query_latch", "oid=%c", handleQueryLatch)
	RegisterResponse("latch_state", "oid=%c pending=%c accepted=%u dropped=%u coalesced=%u last=%u")

	RegisterCommand("config_digital_out", "pin=%c value=%c", handleConfigDigitalOut)
	RegisterCommand("update_digital_out", "pin=%c value=%c", handleUpdateDigitalOut)
	RegisterCommand("query_digital_in", "pin=%c pullup=%c", handleQueryDigitalIn)
	RegisterResponse("digital_in_state", "pin=%c value=%c")

	RegisterCommand("set_debug", "enable=%c", handleSetDebug)
	RegisterCommand("dump_timing", "", handleDumpTiming)
	RegisterResponse("timing_event", "type=%c source=%c clock=%u value1=%u value2=%u")

	RegisterConstant("MCU", "atmega328p")
	RegisterConstant("CLOCK_FREQ", uint32(TickFrequency))
	RegisterConstant("TICK_PERIOD_US", TimerToUS(1))
	RegisterEnumeration("pin", pinNames())
	RegisterEnumeration("trigger", []string{
		LowLevel.String(), AnyEdge.String(), FallingEdge.String(), RisingEdge.String()})
	GetGlobalDictionary().Invalidate()
}

func pinNames() []string {
	names := make([]string, NumPins)
	for p := Pin(0); p < NumPins; p++ {
		names[p] = p.String()
	}
	return names
}

func decodeArgs(data *[]byte, args ...*uint32) error {
	for _, a := range args {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		*a = v
	}
	return nil
}

func encodeArgs(values ...uint32) func(protocol.OutputBuffer) {
	return func(output protocol.OutputBuffer) {
		for _, v := range values {
			protocol.EncodeVLQUint(output, v)
		}
	}
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func handleIdentify(data *[]byte) error {
	var offset, count uint32
	if err := decodeArgs(data, &offset, &count); err != nil {
		return err
	}
	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetUptime(data *[]byte) error {
	up := GetUptime()
	SendResponse("uptime", encodeArgs(uint32(up>>32), uint32(up)))
	return nil
}

func handleGetClock(data *[]byte) error {
	SendResponse("clock", encodeArgs(GetTime()))
	return nil
}

func extiArgs(data *[]byte) (ExtiLine, error) {
	var line uint32
	if err := decodeArgs(data, &line); err != nil {
		return 0, err
	}
	if line > 0xFF || !ExtiLine(line).Valid() {
		return 0, ErrInvalidLine
	}
	return ExtiLine(line), nil
}

func handleConfigExti(data *[]byte) error {
	line, err := extiArgs(data)
	if err != nil {
		return err
	}
	var trig uint32
	if err := decodeArgs(data, &trig); err != nil {
		return err
	}
	if trig > uint32(RisingEdge) {
		return ErrInvalidTrigger
	}
	ExtiInit(line, Trigger(trig))
	return nil
}

func handleExtiDisable(data *[]byte) error {
	line, err := extiArgs(data)
	if err != nil {
		return err
	}
	ExtiDisable(line)
	return nil
}

func handleQueryExti(data *[]byte) error {
	line, err := extiArgs(data)
	if err != nil {
		return err
	}
	SendResponse("exti_state", encodeArgs(
		uint32(line), boolArg(ExtiEnabled(line)), uint32(ExtiTriggerOf(line))))
	return nil
}

func handleQueryLatch(data *[]byte) error {
	var oid uint32
	if err := decodeArgs(data, &oid); err != nil {
		return err
	}
	l := lookupLatch(oid)
	if l == nil {
		return ErrUnknownLatch
	}
	st := l.Stats()
	last, _ := l.LastAccepted()
	SendResponse("latch_state", encodeArgs(
		oid, boolArg(l.Pending()), st.Accepted, st.Dropped, st.Coalesced, last))
	return nil
}

func pinArgs(data *[]byte) (Pin, uint32, error) {
	var pin, value uint32
	if err := decodeArgs(data, &pin, &value); err != nil {
		return 0, 0, err
	}
	if pin >= NumPins {
		return 0, 0, ErrInvalidPin
	}
	return Pin(pin), value, nil
}

func handleConfigDigitalOut(data *[]byte) error {
	pin, value, err := pinArgs(data)
	if err != nil {
		return err
	}
	PinMode(pin, Output)
	WritePin(pin, LevelOf(value != 0))
	return nil
}

func handleUpdateDigitalOut(data *[]byte) error {
	pin, value, err := pinArgs(data)
	if err != nil {
		return err
	}
	WritePin(pin, LevelOf(value != 0))
	return nil
}

func handleQueryDigitalIn(data *[]byte) error {
	pin, pullup, err := pinArgs(data)
	if err != nil {
		return err
	}
	if pullup != 0 {
		PinMode(pin, InputPullUp)
	} else {
		PinMode(pin, Input)
	}
	SendResponse("digital_in_state", encodeArgs(uint32(pin), uint32(ReadPin(pin))))
	return nil
}

func handleSetDebug(data *[]byte) error {
	var enable uint32
	if err := decodeArgs(data, &enable); err != nil {
		return err
	}
	SetDebugEnabled(enable != 0)
	return nil
}

func handleDumpTiming(data *[]byte) error {
	for _, ev := range TimingEvents() {
		SendResponse("timing_event", encodeArgs(
			uint32(ev.EventType), uint32(ev.Source), ev.Clock, ev.Value1, ev.Value2))
	}
	return nil
}

var globalTransport ResponseSender

// SetGlobalTransport sets where SendResponse writes.
func SetGlobalTransport(transport ResponseSender) {
	globalTransport = transport
}

// SendResponse sends a registered response through the global transport.
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		panic("response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}
