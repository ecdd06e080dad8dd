package color

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidHex is returned for strings that are not #rgb or #rrggbb.
var ErrInvalidHex = errors.New("invalid hex color")

// RGB is an 8-bit sRGB color.
type RGB struct {
	R, G, B uint8
}

// LCH is an OKLCH coordinate. H is in radians, normalized to [0, 2π).
type LCH struct {
	L float64 `json:"l"`
	C float64 `json:"c"`
	H float64 `json:"h"`
}

// ParseHex parses "#rrggbb", "rrggbb", "#rgb" or "rgb".
func ParseHex(s string) (RGB, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}

	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// FromHex parses a hex string straight to OKLCH.
func FromHex(s string) (LCH, error) {
	rgb, err := ParseHex(s)
	if err != nil {
		return LCH{}, err
	}
	return rgb.LCH(), nil
}

// Hex formats the color as lowercase "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// LCH converts to OKLCH.
func (c RGB) LCH() LCH {
	r := toLinear(float64(c.R) / 255)
	g := toLinear(float64(c.G) / 255)
	b := toLinear(float64(c.B) / 255)

	l := math.Cbrt(0.4122214708*r + 0.5363325363*g + 0.0514459929*b)
	m := math.Cbrt(0.2119034982*r + 0.6806995451*g + 0.1073969566*b)
	s := math.Cbrt(0.0883024619*r + 0.2817188376*g + 0.6299787005*b)

	L := 0.2104542553*l + 0.7936177850*m - 0.0040720468*s
	A := 1.9779984951*l - 2.4285922050*m + 0.4505937099*s
	B := 0.0259040371*l + 0.7827717662*m - 0.8086757660*s

	h := math.Atan2(B, A)
	if h < 0 {
		h += 2 * math.Pi
	}
	return LCH{L: L, C: math.Hypot(A, B), H: h}
}

// RGB converts back to 8-bit sRGB, clamping out-of-gamut channels.
func (c LCH) RGB() RGB {
	A := c.C * math.Cos(c.H)
	B := c.C * math.Sin(c.H)

	l := c.L + 0.3963377774*A + 0.2158037573*B
	m := c.L - 0.1055613458*A - 0.0638541728*B
	s := c.L - 0.0894841775*A - 1.2914855480*B
	l, m, s = l*l*l, m*m*m, s*s*s

	r := 4.0767416621*l - 3.3077115913*m + 0.2309699292*s
	g := -1.2684380046*l + 2.6097574011*m - 0.3413193965*s
	b := -0.0041960863*l - 0.7034186147*m + 1.7076147010*s

	return RGB{R: to8Bit(fromLinear(r)), G: to8Bit(fromLinear(g)), B: to8Bit(fromLinear(b))}
}

// Hex formats the nearest sRGB color. Stored colors keep the hex and the
// triple in sync by deriving one from the other.
func (c LCH) Hex() string {
	return c.RGB().Hex()
}

func toLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func fromLinear(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

func to8Bit(v float64) uint8 {
	v = math.Round(v * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
