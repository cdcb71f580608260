package widgets

import (
	"fmt"
	"math"
	"strings"
)

var blocks = []rune("▁▂▃▄▅▆▇█")

// Spark8 draws vals, each in [0,1], as a sparkline of the given width.
func Spark8(vals []float64, width int) string {
	if len(vals) == 0 || width <= 0 {
		return ""
	}
	// sample evenly over last vals
	step := float64(len(vals)) / float64(width)
	var b strings.Builder
	for i := 0; i < width; i++ {
		idx := int(math.Min(float64(len(vals)-1), math.Floor(float64(i)*step)))
		level := int(math.Round(clamp01(vals[idx]) * float64(len(blocks)-1)))
		b.WriteRune(blocks[level])
	}
	return b.String()
}

// Bar fills width cells in proportion to v in [0,1]. Any non-zero value gets
// at least one cell.
func Bar(v float64, width int) string {
	if width <= 0 {
		return ""
	}
	v = clamp01(v)
	fill := int(math.Round(v * float64(width)))
	if v > 0 && fill == 0 {
		fill = 1
	}
	return strings.Repeat("█", fill) + strings.Repeat(" ", width-fill)
}

// Normalize scales vals by their maximum so they fit Spark8.
func Normalize(vals []float64) []float64 {
	hi := 0.0
	for _, v := range vals {
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(vals))
	if hi == 0 {
		return out
	}
	for i, v := range vals {
		out[i] = v / hi
	}
	return out
}

// Ratio is v/max, or 0 when max is not positive.
func Ratio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return v / max
}

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes renders n with a binary unit, e.g. 1.5KiB.
func FormatBytes(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "-"
	}
	i := 0
	for math.Abs(n) >= 1024 && i < len(byteUnits)-1 {
		n /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.0f%s", n, byteUnits[i])
	}
	return fmt.Sprintf("%.1f%s", n, byteUnits[i])
}

// FormatRate renders a byte rate per second.
func FormatRate(bps float64) string {
	if math.IsNaN(bps) || math.IsInf(bps, 0) {
		return "-"
	}
	return FormatBytes(bps) + "/s"
}

// FormatLatency renders a latency given in microseconds.
func FormatLatency(us float64) string {
	switch {
	case math.IsNaN(us) || math.IsInf(us, 0):
		return "-"
	case us >= 1e6:
		return fmt.Sprintf("%.2fs", us/1e6)
	case us >= 1e3:
		return fmt.Sprintf("%.1fms", us/1e3)
	default:
		return fmt.Sprintf("%.0fµs", us)
	}
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
