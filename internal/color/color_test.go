package color

import (
	"errors"
	"math"
	"testing"
)

func TestParseHex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    RGB
		wantErr bool
	}{
		{name: "six digits with hash", input: "#ff8000", want: RGB{255, 128, 0}},
		{name: "six digits without hash", input: "0a0b0c", want: RGB{10, 11, 12}},
		{name: "uppercase", input: "#ABCDEF", want: RGB{0xab, 0xcd, 0xef}},
		{name: "short form", input: "#f0a", want: RGB{0xff, 0x00, 0xaa}},
		{name: "surrounding whitespace", input: "  #000000 ", want: RGB{}},
		{name: "empty", input: "", wantErr: true},
		{name: "hash only", input: "#", wantErr: true},
		{name: "wrong length", input: "#12345", wantErr: true},
		{name: "non hex digits", input: "#gg0000", wantErr: true},
		{name: "sign is not a digit", input: "+12345", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseHex(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidHex) {
					t.Fatalf("ParseHex(%q) error = %v, want ErrInvalidHex", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHex(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseHex(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRGBToLCHKnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hex     string
		l, c, h float64 // h in degrees
	}{
		{"#ffffff", 1.0, 0.0, -1},
		{"#000000", 0.0, 0.0, -1},
		{"#ff0000", 0.6280, 0.2577, 29.23},
		{"#00ff00", 0.8664, 0.2948, 142.50},
		{"#0000ff", 0.4520, 0.3132, 264.05},
	}

	for _, tt := range tests {
		got, err := FromHex(tt.hex)
		if err != nil {
			t.Fatalf("FromHex(%q): %v", tt.hex, err)
		}
		if math.Abs(got.L-tt.l) > 0.001 {
			t.Errorf("%s: L = %.4f, want %.4f", tt.hex, got.L, tt.l)
		}
		if math.Abs(got.C-tt.c) > 0.001 {
			t.Errorf("%s: C = %.4f, want %.4f", tt.hex, got.C, tt.c)
		}
		if tt.h >= 0 {
			deg := got.H * 180 / math.Pi
			if math.Abs(deg-tt.h) > 0.1 {
				t.Errorf("%s: h = %.2f°, want %.2f°", tt.hex, deg, tt.h)
			}
		}
		if got.H < 0 || got.H >= 2*math.Pi {
			t.Errorf("%s: hue %f outside [0, 2π)", tt.hex, got.H)
		}
	}
}

func TestHexRoundTrip(t *testing.T) {
	t.Parallel()

	for _, hex := range []string{"#000000", "#ffffff", "#ff0000", "#00ff00", "#0000ff", "#7f7f7f", "#0a0a0a", "#123456", "#c0ffee", "#8a2be2"} {
		lch, err := FromHex(hex)
		if err != nil {
			t.Fatalf("FromHex(%q): %v", hex, err)
		}
		if got := lch.Hex(); got != hex {
			t.Errorf("round trip %s -> %+v -> %s", hex, lch, got)
		}
	}
}

func TestRGBHex(t *testing.T) {
	t.Parallel()

	if got := (RGB{R: 1, G: 171, B: 255}).Hex(); got != "#01abff" {
		t.Errorf("Hex() = %q, want #01abff", got)
	}
}
