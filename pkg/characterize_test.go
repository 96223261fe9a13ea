package pulses

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacterizeUnitRectangle(t *testing.T) {
	// Ten unit-spaced intervals at height one: the area is exactly the span.
	ts := timeAxis(11, 1)
	i := rectangular(11, 0, 11, 1)
	stats, err := Characterize(ts, i, IndexRange{Start: 0, End: 11}, 0, DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.Equal(t, 10.0, stats.DurationS)
	assert.Equal(t, 10.0, stats.ChargeC)
	assert.Equal(t, 1.0, stats.MaxAmplitudeA)
}

func TestCharacterizeHalfSampleEdges(t *testing.T) {
	// Four unit samples between zeros: the trapezoid adds half an interval
	// on each edge, so the charge is 4 while the plateau spans 3.
	ts := timeAxis(6, 1)
	i := []float64{0, 1, 1, 1, 1, 0}
	stats, err := Characterize(ts, i, IndexRange{Start: 0, End: 6}, 0, DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.Equal(t, 4.0, stats.ChargeC)
	assert.Equal(t, 5.0, stats.DurationS)
}

func TestCharacterizeAmplitudeIndependentOfTimeScale(t *testing.T) {
	i := []float64{0, 0.002, 0.011, 0.007, -0.013, 0}
	r := IndexRange{Start: 0, End: len(i)}
	for _, dt := range []float64{1, 1e-9, 1e3} {
		stats, err := Characterize(timeAxis(len(i), dt), i, r, 0, DefaultCharacterizeParams())
		require.NoError(t, err)
		assert.Equal(t, 0.011, stats.MaxAmplitudeA)
		assert.Equal(t, 0.013, stats.PeakAbsA)
	}
}

func TestCharacterizeSaturatedPlateau(t *testing.T) {
	i := make([]float64, 40)
	i[8] = 0.001
	i[9] = 0.01
	addPulse(i, 10, 20, saturation)
	i[20] = 0.01
	i[21] = 0.006
	i[22] = 0.001
	ts := timeAxis(40, 1e-9)

	stats, err := Characterize(ts, i, IndexRange{Start: 10, End: 20}, saturation, DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.True(t, stats.IsSaturated)
	assert.Equal(t, 10, stats.ClippedPointCount)
	assert.InDelta(t, 9e-9, stats.DurationS, 1e-21)
	assert.InDelta(t, 9*saturation*1e-9, stats.ChargeC, 1e-21)

	// Reference is 0.002: the rise starts at sample 8, the fall ends at 22.
	require.NotNil(t, stats.RiseTimeS)
	require.NotNil(t, stats.FallTimeS)
	assert.InDelta(t, 2e-9, *stats.RiseTimeS, 1e-21)
	assert.InDelta(t, 2e-9, *stats.FallTimeS, 1e-21)
}

func TestCharacterizeImmediateFall(t *testing.T) {
	i := rectangular(30, 10, 20, saturation)
	stats, err := Characterize(timeAxis(30, 1e-9), i, IndexRange{Start: 10, End: 20}, saturation, DefaultCharacterizeParams())
	require.NoError(t, err)
	require.NotNil(t, stats.FallTimeS)
	assert.Zero(t, *stats.FallTimeS, "a crossing at the end sample is a zero fall time, not missing context")
	require.NotNil(t, stats.RiseTimeS)
	assert.InDelta(t, 1e-9, *stats.RiseTimeS, 1e-21)
}

func TestCharacterizeInsufficientContext(t *testing.T) {
	ts := timeAxis(30, 1e-9)

	// Plateau touching both ends of the record.
	stats, err := Characterize(ts, rectangular(30, 0, 30, saturation), IndexRange{Start: 0, End: 30}, saturation, DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.Nil(t, stats.RiseTimeS)
	assert.Nil(t, stats.FallTimeS)

	// The crossing lies beyond the lookback.
	p := DefaultCharacterizeParams()
	p.Lookback = 3
	i := rectangular(30, 5, 25, saturation)
	stats, err = Characterize(ts, i, IndexRange{Start: 10, End: 20}, saturation, p)
	require.NoError(t, err)
	assert.Nil(t, stats.RiseTimeS)
	assert.Nil(t, stats.FallTimeS)
	assert.True(t, stats.IsSaturated)
}

func TestCharacterizeWithoutSaturationLevel(t *testing.T) {
	i := rectangular(30, 10, 20, saturation)
	stats, err := Characterize(timeAxis(30, 1e-9), i, IndexRange{Start: 10, End: 20}, 0, DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.False(t, stats.IsSaturated)
	assert.Zero(t, stats.ClippedPointCount)
	assert.Nil(t, stats.RiseTimeS)
	assert.Nil(t, stats.FallTimeS)
}

func TestCharacterizeSingleSample(t *testing.T) {
	stats, err := Characterize(timeAxis(5, 1), []float64{0, 0, 3, 0, 0}, IndexRange{Start: 2, End: 3}, 0, DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.Zero(t, stats.DurationS)
	assert.Zero(t, stats.ChargeC)
	assert.Equal(t, 3.0, stats.MaxAmplitudeA)
}

func TestCharacterizeRejectsBadInput(t *testing.T) {
	var cfgErr *ErrConfig
	_, err := Characterize(timeAxis(5, 1), make([]float64, 5), IndexRange{Start: 3, End: 9}, 0, DefaultCharacterizeParams())
	assert.True(t, errors.As(err, &cfgErr))

	p := DefaultCharacterizeParams()
	p.ReferenceFraction = 1.5
	_, err = Characterize(timeAxis(5, 1), make([]float64, 5), IndexRange{Start: 0, End: 5}, 0, p)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "reference_fraction", cfgErr.Param)

	var malformed *ErrMalformedRecord
	_, err = Characterize(timeAxis(5, 1), make([]float64, 4), IndexRange{Start: 0, End: 4}, 0, DefaultCharacterizeParams())
	assert.True(t, errors.As(err, &malformed))
}
