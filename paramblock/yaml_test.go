package paramblock

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadYAMLFullySpecified(t *testing.T) {
	doc := `
version: 1
pt1000s:
  - abort-temperature: "25.0°C"
    resistance-offset: "0.100Ω"
  - disabled
  - "10.0°C"
  - disabled
contactors:
  - type: without-feedback
    close-time: "50ms"
    open-time: "60ms"
  - with-feedback-normally-closed
estops:
  - active-low
  - disabled
  - active-low
`
	pb, warnings, err := ReadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, int16(250), pb.Temperatures[0])
	assert.Equal(t, int16(100), pb.TempResistanceOffsets[0])
	assert.Equal(t, TempDisabled, pb.Temperatures[1])
	assert.Equal(t, int16(100), pb.Temperatures[2])
	assert.Equal(t, ContactorWithoutFeedback, pb.ContactorTypes[0])
	assert.Equal(t, byte(5), pb.ContactorCloseTimes[0])
	assert.Equal(t, byte(6), pb.ContactorOpenTimes[0])
	assert.Equal(t, ContactorWithFeedbackNC, pb.ContactorTypes[1])
	assert.Equal(t, EstopActiveLow, pb.EstopTypes[0])
	assert.Equal(t, EstopDisabled, pb.EstopTypes[1])
}

func TestReadYAMLWarnsOnSurplusEntries(t *testing.T) {
	doc := `
estops:
  - active-low
  - active-low
  - active-low
  - disabled
`
	_, warnings, err := ReadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "estops")
	assert.Contains(t, warnings[0], "only 3 used")
}

func TestReadYAMLWarnsOnDeficitEntries(t *testing.T) {
	doc := `
contactors:
  - disabled
`
	_, warnings, err := ReadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "left at default")
}

func TestReadYAMLErrorsOnZeroEntries(t *testing.T) {
	doc := `{}`
	_, _, err := ReadYAML(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestReadYAMLErrorsOnBadValue(t *testing.T) {
	doc := `
pt1000s:
  - "25.0"
`
	_, _, err := ReadYAML(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestReadYAMLErrorsOnUnsupportedVersion(t *testing.T) {
	doc := `
version: 7
estops:
  - disabled
`
	_, _, err := ReadYAML(strings.NewReader(doc))
	assert.Error(t, err)
}
