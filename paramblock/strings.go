package paramblock

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chargebyte/ra-utils/internal/protoerr"
)

// clampToI16 clamps before narrowing so out-of-range floats cannot wrap.
func clampToI16(v float64, min, max int16) int16 {
	if v < float64(min) {
		return min
	}
	if v > float64(max) {
		return max
	}
	return int16(v)
}

var disabledSynonyms = map[string]bool{
	"disabled": true, "disable": true, "none": true, "off": true,
}

// ParseTemperature accepts "disabled"/"disable"/"none"/"off" or a float
// followed by "°C" (space optional), clamping to [-80.0, 200.0] °C.
func ParseTemperature(s string) (int16, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if disabledSynonyms[trimmed] {
		return TempDisabled, nil
	}
	if !strings.HasSuffix(trimmed, "°c") {
		return 0, protoerr.Newf(protoerr.KindInput, "invalid temperature %q", s)
	}
	numeric := strings.TrimSpace(strings.TrimSuffix(trimmed, "°c"))
	f, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, protoerr.Newf(protoerr.KindInput, "invalid temperature %q", s)
	}
	return clampToI16(math.Round(f*10), tempMin, tempMax), nil
}

// FormatTemperature is the inverse of ParseTemperature. The legacy disable
// sentinel from older firmware also renders as disabled.
func FormatTemperature(v int16) string {
	if v == TempDisabled || v == tempDisabledLegacy {
		return "disabled"
	}
	return fmt.Sprintf("%.1f°C", float64(v)/10)
}

// ParseResistanceOffset accepts a float followed by "Ω", clamping to
// [-32000, 32000] milli-ohms.
func ParseResistanceOffset(s string) (int16, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasSuffix(trimmed, "Ω") {
		return 0, protoerr.Newf(protoerr.KindInput, "invalid resistance offset %q", s)
	}
	numeric := strings.TrimSpace(strings.TrimSuffix(trimmed, "Ω"))
	f, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, protoerr.Newf(protoerr.KindInput, "invalid resistance offset %q", s)
	}
	return clampToI16(math.Round(f*1000), resistanceMin, resistanceMax), nil
}

// FormatResistanceOffset is the inverse of ParseResistanceOffset.
func FormatResistanceOffset(v int16) string {
	return fmt.Sprintf("%.3fΩ", float64(v)/1000)
}

// ParseContactorType accepts "disabled", "without-feedback",
// "with-feedback-normally-open", "with-feedback-normally-closed", and the
// legacy synonym "with-feedback" (maps to normally-closed).
func ParseContactorType(s string) (ContactorType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "disable", "none", "off":
		return ContactorDisabled, nil
	case "without-feedback":
		return ContactorWithoutFeedback, nil
	case "with-feedback-normally-open":
		return ContactorWithFeedbackNO, nil
	case "with-feedback-normally-closed", "with-feedback":
		return ContactorWithFeedbackNC, nil
	default:
		return 0, protoerr.Newf(protoerr.KindInput, "invalid contactor type %q", s)
	}
}

// FormatContactorType is the inverse of ParseContactorType.
func FormatContactorType(c ContactorType) string {
	switch c {
	case ContactorDisabled:
		return "disabled"
	case ContactorWithoutFeedback:
		return "without-feedback"
	case ContactorWithFeedbackNO:
		return "with-feedback-normally-open"
	case ContactorWithFeedbackNC:
		return "with-feedback-normally-closed"
	default:
		return "unknown"
	}
}

// ParseContactorTime accepts an unsigned integer followed by "ms", storing
// the result in 10 ms units clamped to [0, 255] (i.e. [0, 2550] ms).
func ParseContactorTime(s string) (byte, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasSuffix(trimmed, "ms") {
		return 0, protoerr.Newf(protoerr.KindInput, "invalid contactor time %q", s)
	}
	numeric := strings.TrimSpace(strings.TrimSuffix(trimmed, "ms"))
	ms, err := strconv.ParseUint(numeric, 10, 32)
	if err != nil {
		return 0, protoerr.Newf(protoerr.KindInput, "invalid contactor time %q", s)
	}
	units := ms / 10
	if units > 255 {
		units = 255
	}
	return byte(units), nil
}

// FormatContactorTime is the inverse of ParseContactorTime.
func FormatContactorTime(v byte) string {
	return fmt.Sprintf("%dms", int(v)*10)
}

// ParseEstopType accepts "disabled" or "active-low" plus relaxed synonyms.
func ParseEstopType(s string) (EstopType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "disable", "none", "off":
		return EstopDisabled, nil
	case "active-low", "activelow", "active_low":
		return EstopActiveLow, nil
	default:
		return 0, protoerr.Newf(protoerr.KindInput, "invalid e-stop type %q", s)
	}
}

// FormatEstopType is the inverse of ParseEstopType.
func FormatEstopType(e EstopType) string {
	if e == EstopActiveLow {
		return "active-low"
	}
	return "disabled"
}
