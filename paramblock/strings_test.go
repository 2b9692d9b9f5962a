package paramblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemperatureDisabledSynonyms(t *testing.T) {
	for _, s := range []string{"disabled", "disable", "none", "off", "DISABLED"} {
		v, err := ParseTemperature(s)
		require.NoError(t, err)
		assert.Equal(t, TempDisabled, v)
	}
}

func TestParseTemperatureNumericAndClamp(t *testing.T) {
	v, err := ParseTemperature("25.5°C")
	require.NoError(t, err)
	assert.Equal(t, int16(255), v)

	v, err = ParseTemperature("9999°C")
	require.NoError(t, err)
	assert.Equal(t, int16(tempMax), v)

	v, err = ParseTemperature("-9999°C")
	require.NoError(t, err)
	assert.Equal(t, int16(tempMin), v)
}

func TestParseTemperatureRejectsGarbage(t *testing.T) {
	_, err := ParseTemperature("not a number")
	assert.Error(t, err)
}

func TestParseTemperatureRequiresUnitSuffix(t *testing.T) {
	_, err := ParseTemperature("25.0")
	assert.Error(t, err)

	v, err := ParseTemperature("25.0 °C")
	require.NoError(t, err)
	assert.Equal(t, int16(250), v)
}

func TestFormatTemperatureRoundTrip(t *testing.T) {
	assert.Equal(t, "disabled", FormatTemperature(TempDisabled))
	assert.Equal(t, "disabled", FormatTemperature(tempDisabledLegacy))
	assert.Equal(t, "25.0°C", FormatTemperature(250))
}

func TestParseResistanceOffsetClamps(t *testing.T) {
	v, err := ParseResistanceOffset("999Ω")
	require.NoError(t, err)
	assert.Equal(t, int16(resistanceMax), v)
}

func TestParseContactorTypeLegacySynonym(t *testing.T) {
	v, err := ParseContactorType("with-feedback")
	require.NoError(t, err)
	assert.Equal(t, ContactorWithFeedbackNC, v)
}

func TestParseContactorTimeClampsAndConverts(t *testing.T) {
	v, err := ParseContactorTime("50ms")
	require.NoError(t, err)
	assert.Equal(t, byte(5), v)

	v, err = ParseContactorTime("99999ms")
	require.NoError(t, err)
	assert.Equal(t, byte(255), v)
}

func TestParseEstopTypeSynonyms(t *testing.T) {
	v, err := ParseEstopType("active_low")
	require.NoError(t, err)
	assert.Equal(t, EstopActiveLow, v)

	v, err = ParseEstopType("off")
	require.NoError(t, err)
	assert.Equal(t, EstopDisabled, v)
}
