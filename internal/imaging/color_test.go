package imaging

import (
	"image/color"
	"math"
	"testing"
)

func TestMeanColor(t *testing.T) {
	img := createInMemoryImage(10, 10, color.RGBA{200, 100, 50, 255})
	m := MeanColor(img)
	if m.R != 200 || m.G != 100 || m.B != 50 {
		t.Errorf("MeanColor() = %+v", m)
	}
	if math.Abs(m.Gray()-116.6667) > 0.001 {
		t.Errorf("Gray() = %v", m.Gray())
	}
}

func TestChannelMeans_Lightness(t *testing.T) {
	tests := []struct {
		name  string
		means ChannelMeans
		lo    float64
		hi    float64
	}{
		{"black", ChannelMeans{0, 0, 0}, 0, 0.5},
		{"white", ChannelMeans{255, 255, 255}, 99.5, 100.5},
		{"mid gray", ChannelMeans{119, 119, 119}, 45, 55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.means.Lightness(); got < tt.lo || got > tt.hi {
				t.Errorf("Lightness() = %v, want in [%v, %v]", got, tt.lo, tt.hi)
			}
		})
	}
}

func TestWhiteBalance(t *testing.T) {
	src := createInMemoryImage(10, 10, color.RGBA{200, 100, 50, 255})
	out := WhiteBalance(src)

	c := out.RGBAAt(5, 5)
	for _, v := range []uint8{c.R, c.G, c.B} {
		if absInt(int(v)-117) > 1 {
			t.Errorf("channels not equalised: %v", c)
			break
		}
	}
	if src.RGBAAt(5, 5).R != 200 {
		t.Error("WhiteBalance modified its input")
	}
}

func TestWhiteBalance_ZeroChannel(t *testing.T) {
	src := createInMemoryImage(4, 4, color.RGBA{90, 0, 30, 255})
	c := WhiteBalance(src).RGBAAt(0, 0)
	if c.G != 0 {
		t.Errorf("zero channel should stay 0, got %d", c.G)
	}
	if c.R != 40 || c.B != 40 {
		t.Errorf("gray-world gains wrong: %v", c)
	}
}

func TestPalette(t *testing.T) {
	p := Palette(6)
	if len(p) != 6 {
		t.Fatalf("len = %d, want 6", len(p))
	}
	seen := map[color.RGBA]bool{}
	for _, c := range p {
		if c.A != 255 {
			t.Errorf("palette colour %v not opaque", c)
		}
		seen[c] = true
	}
	if len(seen) != 6 {
		t.Errorf("palette has duplicates: %v", p)
	}
	if len(Palette(0)) != 0 {
		t.Error("Palette(0) should be empty")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input   string
		want    color.RGBA
		wantErr bool
	}{
		{"#FF0000", color.RGBA{255, 0, 0, 255}, false},
		{"00ff00", color.RGBA{0, 255, 0, 255}, false},
		{"#0000FF80", color.RGBA{0, 0, 255, 128}, false},
		{"", color.RGBA{}, true},
		{"#FFF", color.RGBA{}, true},
		{"#GGGGGG", color.RGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseHexColor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHexColor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseHexColor(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
