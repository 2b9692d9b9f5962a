package cbproto

// Com is the wire-level command/message selector of an operational frame.
// Values are pinned explicitly rather than generated by iota: the
// enumeration has gaps (0x0C, 0x0D, 0x0F) and firmware owns the numbering.
type Com byte

const (
	ComDigitalOutput  Com = 0x00
	ComDigitalInput   Com = 0x01
	ComAnalogInput01  Com = 0x02
	ComAnalogInput02  Com = 0x03
	ComAnalogInput03  Com = 0x04
	ComAnalogInput04  Com = 0x05
	ComChargeControl  Com = 0x06
	ComChargeState    Com = 0x07
	ComPT1000State    Com = 0x08
	ComDiagnostic     Com = 0x09
	ComFwVersion      Com = 0x0A
	ComGitHash        Com = 0x0B
	ComErrorMessage   Com = 0x0E
	ComChargeState2   Com = 0x10
	ComChargeControl2 Com = 0x11
	ComDiagnostic2    Com = 0x12
	ComAnalogInput05  Com = 0x13
	ComInquiry        Com = 0xFF
)

var comNames = map[Com]string{
	ComDigitalOutput:  "DIGITAL_OUTPUT",
	ComDigitalInput:   "DIGITAL_INPUT",
	ComAnalogInput01:  "ANALOG_INPUT_01",
	ComAnalogInput02:  "ANALOG_INPUT_02",
	ComAnalogInput03:  "ANALOG_INPUT_03",
	ComAnalogInput04:  "ANALOG_INPUT_04",
	ComChargeControl:  "CHARGE_CONTROL",
	ComChargeState:    "CHARGE_STATE",
	ComPT1000State:    "PT1000_STATE",
	ComDiagnostic:     "DIAGNOSTIC",
	ComFwVersion:      "FW_VERSION",
	ComGitHash:        "GIT_HASH",
	ComErrorMessage:   "ERROR_MESSAGE",
	ComChargeState2:   "CHARGE_STATE_2",
	ComChargeControl2: "CHARGE_CONTROL_2",
	ComDiagnostic2:    "DIAGNOSTIC_2",
	ComAnalogInput05:  "ANALOG_INPUT_05",
	ComInquiry:        "INQUIRY",
}

// String returns the mnemonic for a known COM, or "UNKNOWN" when firmware
// has moved past this table.
func (c Com) String() string {
	if name, ok := comNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// NumericString renders both the mnemonic and the raw byte, for diagnostics
// that must remain useful even if the mnemonic table falls behind firmware.
func (c Com) NumericString() string {
	return c.String() + "(0x" + hexByte(byte(c)) + ")"
}

func hexByte(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xF]})
}
