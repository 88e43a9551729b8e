package calibration

import (
	"bytes"
	"context"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/graticule-tools/internal/imaging"
)

// rulingProfile has dark 3-sample lines every 20 samples from x=10.
func rulingProfile() imaging.Profile {
	values := make([]float64, 200)
	for x := range values {
		values[x] = 4000
		if x >= 10 && (x-10)%20 < 3 {
			values[x] = 900
		}
	}
	return imaging.Profile{Row: 400, Values: values}
}

func TestManualPicker(t *testing.T) {
	p := rulingProfile()

	pts, err := ManualPicker{X1: 10, X2: 170}.PickPoints(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, [2]Point{{X: 10, Y: 900}, {X: 170, Y: 900}}, pts)
}

func TestManualPicker_OutOfRange(t *testing.T) {
	p := rulingProfile()

	inputs := []ManualPicker{
		{X1: 62, X2: 1299},
		{X1: -1, X2: 5},
		{X1: 5, X2: 200},
		{X1: 10, X2: 1e30},
		{X1: math.NaN(), X2: 20},
		{X1: 10, X2: math.Inf(1)},
		{X1: math.Inf(-1), X2: 20},
	}
	for _, m := range inputs {
		_, err := m.PickPoints(context.Background(), p)
		assert.ErrorIs(t, err, ErrInvalidCalibration, "%+v", m)
	}
}

func TestManualPicker_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ManualPicker{X1: 10, X2: 20}.PickPoints(ctx, rulingProfile())
	assert.ErrorIs(t, err, ErrCalibrationAborted)
}

func TestPromptPicker(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("10\n170 123.5\n")

	pts, err := PromptPicker{In: in, Out: &out}.PickPoints(context.Background(), rulingProfile())
	require.NoError(t, err)

	assert.Equal(t, Point{X: 10, Y: 900}, pts[0])
	assert.Equal(t, Point{X: 170, Y: 123.5}, pts[1])
	assert.Contains(t, out.String(), "Point 1 of 2")
	assert.Contains(t, out.String(), "Point 2 of 2")
	assert.Contains(t, out.String(), "row 400 [0-199]")
}

func TestPromptPicker_RetriesBadInput(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("\nabc\n500\nnan\ninf\n1e30\n1 2 3\n10, 5\n170\n")

	pts, err := PromptPicker{In: in, Out: &out}.PickPoints(context.Background(), rulingProfile())
	require.NoError(t, err)

	assert.Equal(t, 10.0, pts[0].X)
	assert.Equal(t, 5.0, pts[0].Y)
	assert.Equal(t, 170.0, pts[1].X)
	assert.Contains(t, out.String(), `invalid x "abc"`)
	assert.Contains(t, out.String(), "x=500 outside profile")
	assert.Contains(t, out.String(), "x=NaN outside profile")
	assert.Contains(t, out.String(), "x=+Inf outside profile")
	assert.Contains(t, out.String(), "x=1e+30 outside profile")
	assert.Equal(t, 9, strings.Count(out.String(), "enter pixel x"))
}

func TestPromptPicker_EOFAborts(t *testing.T) {
	var out bytes.Buffer
	_, err := PromptPicker{In: strings.NewReader("10\n"), Out: &out}.PickPoints(context.Background(), rulingProfile())

	require.ErrorIs(t, err, ErrCalibrationAborted)
	assert.Contains(t, err.Error(), "after 1 of 2")
}

func TestPromptPicker_ContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := PromptPicker{In: r, Out: io.Discard}.PickPoints(ctx, rulingProfile())
		errc <- err
	}()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrCalibrationAborted)
	case <-time.After(5 * time.Second):
		t.Fatal("PickPoints did not return after cancel")
	}
}

func TestAutoPicker(t *testing.T) {
	pts, err := AutoPicker{GapCount: 8}.PickPoints(context.Background(), rulingProfile())
	require.NoError(t, err)

	assert.Equal(t, 10.0, pts[0].X)
	assert.Equal(t, 170.0, pts[1].X)

	cal, err := Calibrate(pts, Options{GapCount: 8, GapSpacing: 10, Unit: "µm"})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cal.UnitsPerPixel, 1e-12)
}

func TestAutoPicker_BrightLines(t *testing.T) {
	p := rulingProfile()
	for i, v := range p.Values {
		p.Values[i] = 5000 - v
	}

	pts, err := AutoPicker{GapCount: 2, Bright: true}.PickPoints(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, [2]float64{10, 50}, [2]float64{pts[0].X, pts[1].X})
}

func TestAutoPicker_TooFewLines(t *testing.T) {
	_, err := AutoPicker{GapCount: 12}.PickPoints(context.Background(), rulingProfile())
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

func TestPickersSatisfyInterface(t *testing.T) {
	var _ PointPicker = ManualPicker{}
	var _ PointPicker = PromptPicker{}
	var _ PointPicker = AutoPicker{}
}
