package cbproto

import (
	"fmt"
	"time"
)

// ChargeControl is the outgoing control word. All field writes are
// read-modify-write on the wrapped u64 so unrelated bits survive.
type ChargeControl uint64

// ChargeState is the last-received state word; its bit layout depends on
// which COM it arrived on (classic CHARGE_STATE vs MCS CHARGE_STATE_2),
// so most accessors are only meaningful under the matching Mode.
type ChargeState uint64

// Mode selects which protocol variant (classic CS1/CC1 vs MCS CS2/CC2) the
// dispatcher composes outgoing frames for. It only ever advances forward
// within a session, never back from MCS to classic.
type Mode int

const (
	ModeClassic Mode = iota
	ModeMCS
)

func (m Mode) String() string {
	if m == ModeMCS {
		return "MCS"
	}
	return "classic"
}

// CPState is the Control Pilot state enumeration (bits 40-42 of charge_state).
type CPState byte

const (
	CPUnknown CPState = iota
	CPStateA
	CPStateB
	CPStateC
	CPStateD
	CPStateE
	CPStateF
	CPInvalid
)

func (s CPState) String() string {
	names := [...]string{"UNKNOWN", "A", "B", "C", "D", "E", "F", "INVALID"}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// PPState is the Proximity Pilot state enumeration (bits 32-34 of
// charge_state); for AC charging it encodes the cable's current capability.
type PPState byte

const (
	PPNoCable PPState = iota
	PP13A
	PP20A
	PP32A
	PP63To70A
	PPType1Connected
	PPType1ConnectedButtonPressed
	PPInvalid
)

func (s PPState) String() string {
	names := [...]string{
		"NO_CABLE", "13A", "20A", "32A", "63_70A",
		"TYPE1_CONNECTED", "TYPE1_CONNECTED_BUTTON_PRESSED", "INVALID",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "INVALID"
}

// ContactorState is the 2-bit actual-state encoding of a contactor (bits
// 24+2i..25+2i). Firmware history also carried a 3-bit/stride-3 encoding
// with an extra error bit; that variant is not implemented here.
type ContactorState byte

const (
	ContactorOpen ContactorState = iota
	ContactorClosed
	ContactorReserved
	ContactorUnused
)

func (s ContactorState) String() string {
	names := [...]string{"OPEN", "CLOSED", "RESERVED", "UNUSED"}
	return names[s&0x3]
}

// EstopState is the 2-bit actual-state encoding of an e-stop input (bits
// 16+2i..17+2i).
type EstopState byte

const (
	EstopNotTripped EstopState = iota
	EstopTripped
	EstopReserved
	EstopUnused
)

func (s EstopState) String() string {
	names := [...]string{"NOT_TRIPPED", "TRIPPED", "RESERVED", "UNUSED"}
	return names[s&0x3]
}

// SafeStateActive is the 2-bit safe-state-active status, read from bits
// 58-59 on a classic (CS1) frame or bits 46-47 on an MCS (CS2) frame.
type SafeStateActive byte

const (
	SafeStateNormal SafeStateActive = iota
	SafeStateActiveFlag
	safeStateReservedValue
	SafeStateSNA
)

func (s SafeStateActive) String() string {
	names := [...]string{"NORMAL", "SAFE_STATE", "RESERVED", "SNA"}
	return names[s&0x3]
}

// CCSReady is the 4-bit MCS-only CCS-ready enumeration written into bits
// 60-63 of the outgoing control word.
type CCSReady byte

const (
	CCSNotReady CCSReady = iota
	CCSReadyValue
	CCSEmergencyStop
)

func (c CCSReady) String() string {
	switch c {
	case CCSNotReady:
		return "NOT_READY"
	case CCSReadyValue:
		return "READY"
	case CCSEmergencyStop:
		return "EMERGENCY_STOP"
	default:
		return "UNKNOWN"
	}
}

const maxDuty = 1000

// SetPWM returns a ChargeControl word with the PWM-enable bit (63) and the
// 10-bit duty field (bits 48-57) set, clamping duty to [0, maxDuty].
func (c ChargeControl) SetPWM(enable bool, duty uint16) ChargeControl {
	if duty > maxDuty {
		duty = maxDuty
	}
	word := uint64(c) &^ (uint64(1) << 63) &^ (uint64(0x3FF) << 48)
	if enable {
		word |= uint64(1) << 63
	}
	word |= uint64(duty&0x3FF) << 48
	return ChargeControl(word)
}

// PWMEnabled reports the PWM-enable bit.
func (c ChargeControl) PWMEnabled() bool { return uint64(c)&(1<<63) != 0 }

// Duty returns the commanded duty cycle in tenths of a percent.
func (c ChargeControl) Duty() uint16 { return uint16((uint64(c) >> 48) & 0x3FF) }

// SetContactor sets the target state (1 = close) of contactor i (0 or 1).
func (c ChargeControl) SetContactor(i int, closeIt bool) ChargeControl {
	bit := uint64(1) << (40 + uint(i))
	word := uint64(c) &^ bit
	if closeIt {
		word |= bit
	}
	return ChargeControl(word)
}

// ContactorTarget reports the requested state of contactor i.
func (c ChargeControl) ContactorTarget(i int) bool {
	return uint64(c)&(uint64(1)<<(40+uint(i))) != 0
}

// SetCCSReady overwrites the 4-bit CCS-ready field (bits 60-63) and nothing
// else.
func (c ChargeControl) SetCCSReady(v CCSReady) ChargeControl {
	word := uint64(c) &^ (uint64(0xF) << 60)
	word |= uint64(v&0xF) << 60
	return ChargeControl(word)
}

// SetEStop overwrites the CCS-ready field with EMERGENCY_STOP when active,
// or NOT_READY when cleared - the control-frame encoding for "e-stop" is
// the same 4-bit field CCS-ready uses.
func (c ChargeControl) SetEStop(active bool) ChargeControl {
	if active {
		return c.SetCCSReady(CCSEmergencyStop)
	}
	return c.SetCCSReady(CCSNotReady)
}

// CCSReady returns the current CCS-ready field value.
func (c ChargeControl) CCSReady() CCSReady {
	return CCSReady((uint64(c) >> 60) & 0xF)
}

// PWMActive reports whether the MCU reports the PWM output as active.
func (s ChargeState) PWMActive() bool { return uint64(s)&(1<<63) != 0 }

// Duty returns the actual duty cycle in tenths of a percent (classic frames).
func (s ChargeState) Duty() uint16 { return uint16((uint64(s) >> 48) & 0x3FF) }

// CPState returns the Control Pilot state (bits 40-42).
func (s ChargeState) CPState() CPState { return CPState((uint64(s) >> 40) & 0x7) }

// CPShortCircuit reports the CP short-circuit error flag (bit 43).
func (s ChargeState) CPShortCircuit() bool { return uint64(s)&(1<<43) != 0 }

// CPDiodeFault reports the CP diode-fault error flag (bit 44).
func (s ChargeState) CPDiodeFault() bool { return uint64(s)&(1<<44) != 0 }

// PPState returns the Proximity Pilot state (bits 32-34).
func (s ChargeState) PPState() PPState { return PPState((uint64(s) >> 32) & 0x7) }

// HVReady reports the HV-ready bit (30).
func (s ChargeState) HVReady() bool { return uint64(s)&(1<<30) != 0 }

// ContactorHasError reports the single global HV-switch error flag.
// Firmware exposes no per-contactor error bit on current layouts, so this
// is intentionally not indexed by contactor.
func (s ChargeState) ContactorHasError() bool { return !s.HVReady() }

// ContactorState returns the actual state of contactor i (0 or 1).
func (s ChargeState) ContactorState(i int) ContactorState {
	return ContactorState((uint64(s) >> (24 + uint(2*i))) & 0x3)
}

// EstopState returns the actual state of e-stop i (0, 1 or 2).
func (s ChargeState) EstopState(i int) EstopState {
	return EstopState((uint64(s) >> (16 + uint(2*i))) & 0x3)
}

// SafeStateReasonCS1 returns the 8-bit safe-state reason carried by a
// classic (CS1) frame.
func (s ChargeState) SafeStateReasonCS1() byte { return byte((uint64(s) >> 8) & 0xFF) }

var cs1SafeStateReasonNames = [...]string{
	"NO_STOP", "INTERNAL_ERROR", "COM_TIMEOUT",
	"TEMP1_MALFUNCTION", "TEMP2_MALFUNCTION", "TEMP3_MALFUNCTION", "TEMP4_MALFUNCTION",
	"TEMP1_OVERTEMP", "TEMP2_OVERTEMP", "TEMP3_OVERTEMP", "TEMP4_OVERTEMP",
	"PP_MALFUNCTION", "CP_MALFUNCTION", "CP_SHORT_CIRCUIT", "CP_DIODE_FAULT",
	"HV_SWITCH_MALFUNCTION", "EMERGENCY_INPUT_1", "EMERGENCY_INPUT_2", "EMERGENCY_INPUT_3",
}

// SafeStateReasonCS1String renders the classic frame's safe-state reason,
// always including the numeric code.
func (s ChargeState) SafeStateReasonCS1String() string {
	r := s.SafeStateReasonCS1()
	name := "UNKNOWN"
	if int(r) < len(cs1SafeStateReasonNames) {
		name = cs1SafeStateReasonNames[r]
	}
	return name + "(0x" + hexByte(r) + ")"
}

// SafeStateActive returns the safe-state-active status, reading bits 58-59
// for classic frames or 46-47 for MCS frames.
func (s ChargeState) SafeStateActive(mode Mode) SafeStateActive {
	if mode == ModeMCS {
		return SafeStateActive((uint64(s) >> 46) & 0x3)
	}
	return SafeStateActive((uint64(s) >> 58) & 0x3)
}

// IDState returns the MCS-only ID state (bits 56-59).
func (s ChargeState) IDState() byte { return byte((uint64(s) >> 56) & 0xF) }

// CEState returns the MCS-only CE state (bits 60-63).
func (s ChargeState) CEState() byte { return byte((uint64(s) >> 60) & 0xF) }

// EstopReasonCS2 returns the MCS-only e-stop reason (bits 48-55).
func (s ChargeState) EstopReasonCS2() byte { return byte((uint64(s) >> 48) & 0xFF) }

var cs2EstopReasonNames = [...]string{
	"NO_STOP", "INTERNAL_ERROR", "COM_TIMEOUT",
	"TEMP1_MALFUNCTION", "TEMP2_MALFUNCTION", "TEMP3_MALFUNCTION", "TEMP4_MALFUNCTION",
	"TEMP1_OVERTEMP", "TEMP2_OVERTEMP", "TEMP3_OVERTEMP", "TEMP4_OVERTEMP",
	"ID_MALFUNCTION", "CE_MALFUNCTION", "HVREADY_MALFUNCTION", "EMERGENCY_INPUT",
}

// EstopReasonCS2String renders the MCS frame's e-stop reason, always
// including the numeric code.
func (s ChargeState) EstopReasonCS2String() string {
	r := s.EstopReasonCS2()
	name := "UNKNOWN"
	if int(r) < len(cs2EstopReasonNames) {
		name = cs2EstopReasonNames[r]
	}
	return name + "(0x" + hexByte(r) + ")"
}

// FwVersion decodes the one-shot firmware-version word.
type FwVersion uint64

func (v FwVersion) Major() byte           { return byte(uint64(v) >> 56) }
func (v FwVersion) Minor() byte           { return byte(uint64(v) >> 48) }
func (v FwVersion) Build() byte           { return byte(uint64(v) >> 40) }
func (v FwVersion) Platform() byte        { return byte(uint64(v) >> 32) }
func (v FwVersion) Application() byte     { return byte(uint64(v) >> 24) }
func (v FwVersion) ParameterVersion() uint16 { return uint16(uint64(v) >> 8) }

// platformCCY is the Charge Control Y platform-type byte; the operational
// protocol's fw_version word carries the same platform-type values as the
// firmware info block.
const platformCCY = 0x82

// IsMCSPlatform reports whether the platform byte identifies the MCS
// variant, the trigger condition for Model.mcs to latch true.
func (v FwVersion) IsMCSPlatform() bool { return v.Platform() == platformCCY }

// GitHash holds the big-endian wire word and renders in wire order, so the
// output matches what git rev-parse prints for the build.
type GitHash uint64

func (h GitHash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// ErrorModule identifies which firmware module raised an error_message
// record. The values mirror the firmware's own module table.
type ErrorModule uint16

const (
	ErrModuleDefault ErrorModule = iota
	ErrModuleAppTask
	ErrModuleAppComm
	ErrModuleAppSafety
	ErrModuleAppCPPP
	ErrModuleAppTemp
	ErrModuleAppSystem
	ErrModuleMwADC
	ErrModuleMwI2C
	ErrModuleMwPin
	ErrModuleMwPWM
	ErrModuleMwUART
	ErrModuleMwParam
	errModuleMax
)

var errModuleNames = [errModuleMax]string{
	"DEFAULT",
	"APP_TASK",
	"APP_COMM",
	"APP_SAFETY",
	"APP_CP_PP",
	"APP_TEMP",
	"APP_SYSTEM",
	"MW_ADC",
	"MW_I2C",
	"MW_PIN",
	"MW_PWM",
	"MW_UART",
	"MW_PARAM",
}

func (m ErrorModule) String() string {
	if m < errModuleMax {
		return errModuleNames[m]
	}
	return "unknown"
}

// ErrorMessage decodes the last-received error record.
type ErrorMessage uint64

func (e ErrorMessage) Active() bool           { return uint64(e)&(1<<63) != 0 }
func (e ErrorMessage) Module() ErrorModule     { return ErrorModule((uint64(e) >> 48) & 0x7FFF) }
func (e ErrorMessage) Reason() uint16          { return uint16(uint64(e) >> 32) }
func (e ErrorMessage) AdditionalData1() uint16 { return uint16(uint64(e) >> 16) }
func (e ErrorMessage) AdditionalData2() uint16 { return uint16(uint64(e)) }

// reasonStrings maps each module's reason codes to descriptions. The bracket
// suffix documents what additional_data_1/2 carry for that reason. Callers
// always print the numeric code alongside the text, so a code past the end
// of a table is never lost.
var reasonStrings = [errModuleMax][]string{
	ErrModuleDefault: {"default"},
	ErrModuleAppTask: {
		"default",
		"task was not executed in time [task id, -]",
	},
	ErrModuleAppComm: {
		"default",
		"safety message timeouted [message id, last timestamp]",
	},
	ErrModuleAppSafety: {
		"default",
		"safety state mismatch [active safety fault, inverted safety fault]",
		"CP safety fault [CP pos voltage, CP neg voltage]",
	},
	ErrModuleAppCPPP: {
		"default",
		"[CP pos voltage, CP neg voltage]",
		"[PP voltage, -]",
	},
	ErrModuleAppTemp: {
		"default",
		"short to battery [raw current, index]",
		"short to ground [raw current, index:4 | raw voltage:12]",
		"open load [raw current, index:4 | raw voltage:12]",
		"temperature over limit [raw temp, index]",
		"temperature under limit [raw temp, index]",
		"resistance too high [resistance/10000, index]",
		"resistance negative [abs(resistance), index]",
		"invalid evaluation state [state, -]",
	},
	ErrModuleAppSystem: {
		"default",
		"watchdog error [watchdog state, -]",
		"application initial selftests failed [-, -]",
		"application CRC mismatch [calculated CRC, stored CRC]",
		"application initial ADC test error [-, -]",
		"CPU test error [-, -]",
		"RAM test error [-, -]",
		"clock test error [-, -]",
		"clock stop error [-, -]",
		"ROM test error [-, -]",
		"ADC test error [-, -]",
		"voltage test error [-, -]",
		"temperature error [-, -]",
		"other test failed [-, -]",
	},
	ErrModuleMwADC: {
		"default",
		"ELC initialization failed [FSP error code, -]",
		"ADC initialization failed [FSP error code, -]",
		"ADC scan configuration failed [FSP error code, -]",
		"ELC enable failed [FSP error code, -]",
		"ADC scan start failed [FSP error code, -]",
		"GPT initialization failed [FSP error code, -]",
		"GPT start failed [FSP error code, -]",
		"ADC read failed [group, FSP error code]",
		"invalid parameter for adcif_get_value [value, average_size]",
	},
	ErrModuleMwI2C: {"default"},
	ErrModuleMwPin: {"default"},
	ErrModuleMwPWM: {
		"default",
		"GPT initialization failed [FSP error code, -]",
		"GPT start failed [FSP error code, -]",
		"setting duty cycle failed [dutycycle, FSP error code]",
	},
	ErrModuleMwUART: {
		"default",
		"UART initialization failed [FSP error code, -]",
		"UART RX buffer overflow [packet type, buffer index]",
		"UART TX buffer overflow [packet type, buffer index]",
		"UART TX failed [packet type, FSP error code]",
		"no TX packet set [ -, -]",
	},
	ErrModuleMwParam: {
		"default",
		"parameter not found in memory, defaults will be used",
		"CRC mismatch, defaults will be used ",
		"index out of bounds [index, [1= temp, 2=hv connector, 3=emergency in]]",
	},
}

// ReasonString renders the textual description for this record's
// module+reason pair, or "unknown" when the code is past the module's table.
func (e ErrorMessage) ReasonString() string {
	module := e.Module()
	reason := int(e.Reason())
	if module < errModuleMax {
		table := reasonStrings[module]
		if reason < len(table) {
			return table[reason]
		}
	}
	return "unknown"
}

// PT1000Channel is a decoded PT1000 temperature channel.
type PT1000Channel struct {
	TenthsCelsius  int16
	ChargingStopped bool
	SelftestFailed bool
	Unused         bool
}

const pt1000UnusedSentinel = 0x1FFF

// PT1000 decodes the last-received four-channel temperature word.
type PT1000 uint64

// Channel returns channel i (0-3); channel 0 occupies the highest 16 bits.
func (p PT1000) Channel(i int) PT1000Channel {
	shift := uint(16 * (3 - i))
	word := uint16(uint64(p) >> shift)
	top14 := int16(word) >> 2
	flags := byte(word & 0x3)
	return PT1000Channel{
		TenthsCelsius:   top14,
		ChargingStopped: flags&0x1 != 0,
		SelftestFailed:  flags&0x2 != 0,
		Unused:          top14 == pt1000UnusedSentinel || word == 0x8000,
	}
}

// Model is the live device state projected from received frames, plus the
// outgoing control word the dispatcher emits.
type Model struct {
	chargeControl ChargeControl
	chargeState   ChargeState
	pt1000        PT1000
	fwVersion     FwVersion
	gitHash       GitHash
	errorMessage  ErrorMessage
	mode          Mode

	populated map[Com]bool
	tsRecv    map[Com]time.Time
}

// NewModel returns a zero-valued Model in classic mode.
func NewModel() *Model {
	return &Model{
		populated: make(map[Com]bool),
		tsRecv:    make(map[Com]time.Time),
	}
}

// Mode returns the current protocol-variant mode.
func (m *Model) Mode() Mode { return m.mode }

// ChargeControl returns the current outgoing control word.
func (m *Model) ChargeControl() ChargeControl { return m.chargeControl }

// SetChargeControl replaces the outgoing control word wholesale (used by
// the manual-control-frame CLI command).
func (m *Model) SetChargeControl(c ChargeControl) { m.chargeControl = c }

// SetPWM clamps and applies duty to the outgoing control word.
func (m *Model) SetPWM(enable bool, duty uint16) {
	m.chargeControl = m.chargeControl.SetPWM(enable, duty)
}

// SetContactor applies a contactor target to the outgoing control word.
func (m *Model) SetContactor(i int, closeIt bool) {
	m.chargeControl = m.chargeControl.SetContactor(i, closeIt)
}

// SetCCSReady applies the CCS-ready field to the outgoing control word.
func (m *Model) SetCCSReady(v CCSReady) {
	m.chargeControl = m.chargeControl.SetCCSReady(v)
}

// SetEStop applies the e-stop field to the outgoing control word.
func (m *Model) SetEStop(active bool) {
	m.chargeControl = m.chargeControl.SetEStop(active)
}

// ChargeState, PT1000, FwVersion, GitHash and ErrorMessage expose the last
// received values; they are only meaningful once Populated reports the
// backing COM has been seen at least once this session.
func (m *Model) ChargeState() ChargeState   { return m.chargeState }
func (m *Model) PT1000() PT1000             { return m.pt1000 }
func (m *Model) FwVersion() FwVersion       { return m.fwVersion }
func (m *Model) GitHash() GitHash           { return m.gitHash }
func (m *Model) ErrorMessage() ErrorMessage { return m.errorMessage }

// Populated reports whether com has been applied at least once this session.
func (m *Model) Populated(com Com) bool { return m.populated[com] }

// LastSeen returns the last time com was applied, and whether it ever was.
func (m *Model) LastSeen(com Com) (time.Time, bool) {
	ts, ok := m.tsRecv[com]
	return ts, ok
}

// ApplyFrame dispatches a received (com, payload) pair into the matching
// state word, records the receive timestamp, and advances mode to MCS when
// the frame reveals an MCS platform.
func (m *Model) ApplyFrame(com Com, payload uint64, ts time.Time) {
	m.populated[com] = true
	m.tsRecv[com] = ts

	switch com {
	case ComChargeState:
		m.chargeState = ChargeState(payload)
	case ComChargeState2:
		m.chargeState = ChargeState(payload)
		m.mode = ModeMCS
	case ComPT1000State:
		m.pt1000 = PT1000(payload)
	case ComFwVersion:
		m.fwVersion = FwVersion(payload)
		if m.fwVersion.IsMCSPlatform() {
			m.mode = ModeMCS
		}
	case ComGitHash:
		m.gitHash = GitHash(payload)
	case ComErrorMessage:
		m.errorMessage = ErrorMessage(payload)
	}
}

// OutgoingCom returns the COM to use when emitting the current
// charge-control word, which depends on the active mode.
func (m *Model) OutgoingCom() Com {
	if m.mode == ModeMCS {
		return ComChargeControl2
	}
	return ComChargeControl
}

// StateCom returns the COM the dispatcher should treat as "the" state frame
// for auto-send purposes, matching the active mode.
func (m *Model) StateCom() Com {
	if m.mode == ModeMCS {
		return ComChargeState2
	}
	return ComChargeState
}
