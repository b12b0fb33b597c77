package images

import "testing"

func TestRasterizeSVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50"><rect width="100" height="50"/></svg>`)

	tests := []struct {
		name             string
		targetW, targetH int
		wantW, wantH     int
	}{
		{"intrinsic", 0, 0, 100, 50},
		{"scale by width", 200, 0, 200, 100},
		{"scale by height", 0, 200, 400, 200},
		{"fit box", 150, 150, 150, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := RasterizeSVG(svg, tt.targetW, tt.targetH)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Fatalf("unexpected bounds: %v", img.Bounds())
			}
		})
	}
}

func TestRasterizeSVG_Clamped(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 5"><rect width="10" height="5"/></svg>`)

	saved := maxRasterDim
	maxRasterDim = 64
	defer func() { maxRasterDim = saved }()

	img, err := RasterizeSVG(svg, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Errorf("unexpected bounds: %v", img.Bounds())
	}
}
