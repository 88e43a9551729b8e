package render

import (
	"testing"

	"github.com/ironsheep/graticule-tools/internal/calibration"
	"github.com/ironsheep/graticule-tools/internal/imaging"
)

func sawProfile(n int) imaging.Profile {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i % 20 * 100)
	}
	return imaging.Profile{Row: 400, Values: values}
}

func TestProfileChart_DefaultSize(t *testing.T) {
	img, err := ProfileChart(sawProfile(200), ProfileChartOptions{})
	if err != nil {
		t.Fatalf("ProfileChart failed: %v", err)
	}
	if img.Bounds().Dx() != 1024 || img.Bounds().Dy() != 400 {
		t.Errorf("size: got %v, want 1024x400", img.Bounds())
	}
}

func TestProfileChart_WithMarkers(t *testing.T) {
	opts := ProfileChartOptions{
		Width:   640,
		Height:  300,
		Markers: []calibration.Point{{X: 10, Y: 1000}, {X: 170, Y: 1000}},
	}
	img, err := ProfileChart(sawProfile(200), opts)
	if err != nil {
		t.Fatalf("ProfileChart failed: %v", err)
	}
	if img.Bounds().Dx() != 640 || img.Bounds().Dy() != 300 {
		t.Errorf("size: got %v, want 640x300", img.Bounds())
	}
}

func TestProfileChart_FlatProfile(t *testing.T) {
	p := imaging.Profile{Row: 3, Values: []float64{7, 7, 7, 7, 7}}
	if _, err := ProfileChart(p, ProfileChartOptions{Width: 200, Height: 120}); err != nil {
		t.Errorf("flat profile should still plot: %v", err)
	}
}

func TestProfileChart_Errors(t *testing.T) {
	if _, err := ProfileChart(imaging.Profile{}, ProfileChartOptions{}); err == nil {
		t.Error("empty profile should fail")
	}
	if _, err := ProfileChart(sawProfile(50), ProfileChartOptions{LineColor: "#12"}); err == nil {
		t.Error("bad line color should fail")
	}
	if _, err := ProfileChart(sawProfile(50), ProfileChartOptions{MarkerColor: "nope"}); err == nil {
		t.Error("bad marker color should fail")
	}
}

func TestChartColor(t *testing.T) {
	c, err := chartColor("#D62728")
	if err != nil {
		t.Fatalf("chartColor failed: %v", err)
	}
	if c.R != 0xD6 || c.G != 0x27 || c.B != 0x28 || c.A != 255 {
		t.Errorf("got %+v", c)
	}
}
