// Package svg renders the standalone report charts served next to the JSON reports.
package svg

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Defaults for the report charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 260
	DefaultPadding = 32.0
	DefaultTicks   = 5
)

var palette = []string{"#0ea5e9", "#f97316", "#16a34a", "#a855f7"}

// Series is one named sequence of values aligned with Chart.Labels.
type Series struct {
	Label  string
	Values []float64
	Color  string
}

// Chart is a bar chart with optional overlaid lines sharing one value axis.
type Chart struct {
	Title       string
	Description string
	Labels      []string
	Bars        []Series
	Lines       []Series
	Width       int
	Height      int
	Padding     float64
	Ticks       int
	AxisColor   string
	GridColor   string
}

// Render returns the chart as a standalone SVG document.
func Render(c Chart) ([]byte, error) {
	if len(c.Labels) == 0 {
		return nil, errors.New("svg: labels required")
	}
	if len(c.Bars)+len(c.Lines) == 0 {
		return nil, errors.New("svg: at least one series required")
	}
	for _, s := range append(append([]Series{}, c.Bars...), c.Lines...) {
		if len(s.Values) != len(c.Labels) {
			return nil, fmt.Errorf("svg: series %q has %d values for %d labels", s.Label, len(s.Values), len(c.Labels))
		}
	}
	width, height := c.Width, c.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := c.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	ticks := c.Ticks
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	axisColor := fallback(c.AxisColor, "#475569")
	gridColor := fallback(c.GridColor, "#cbd5f5")

	chartWidth := float64(width) - 2*padding
	chartHeight := float64(height) - 2*padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return nil, errors.New("svg: viewport too small")
	}

	minVal, maxVal := bounds(c.Bars, c.Lines)
	scale := chartHeight / (maxVal - minVal)
	bottom := padding + chartHeight
	zeroY := bottom - (0-minVal)*scale
	yOf := func(v float64) float64 { return bottom - (v-minVal)*scale }

	groupWidth := chartWidth / float64(len(c.Labels))
	barWidth := groupWidth * 0.8 / float64(max(len(c.Bars), 1))
	centerX := func(i int) float64 { return padding + float64(i)*groupWidth + groupWidth/2 }

	titleID := makeID(c.Title, "title")
	descID := makeID(c.Title, "desc")

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, width, height, titleID, descID)
	fmt.Fprintf(&b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(fallback(c.Title, "Chart")))
	fmt.Fprintf(&b, `<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(fallback(c.Description, "Report data")))

	for i := 0; i <= ticks; i++ {
		ratio := float64(i) / float64(ticks)
		value := minVal + (maxVal-minVal)*ratio
		y := bottom - ratio*chartHeight
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, padding, y, padding+chartWidth, y, gridColor)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, padding-6, y+4, axisColor, template.HTMLEscapeString(formatTick(value)))
	}

	fmt.Fprintf(&b, `<g stroke="%s">`, axisColor)
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, padding, padding, padding, bottom)
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, padding, zeroY, padding+chartWidth, zeroY)
	b.WriteString("</g>")

	for si, s := range c.Bars {
		color := seriesColor(s, si)
		for i, v := range s.Values {
			x := padding + float64(i)*groupWidth + groupWidth*0.1 + float64(si)*barWidth
			top, h := yOf(v), zeroY-yOf(v)
			if v < 0 {
				top, h = zeroY, yOf(v)-zeroY
			}
			fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" aria-label="%s %s"></rect>`, x, top, barWidth, h, color, template.HTMLEscapeString(s.Label), template.HTMLEscapeString(c.Labels[i]))
		}
	}

	for si, s := range c.Lines {
		color := seriesColor(s, len(c.Bars)+si)
		var path strings.Builder
		for i, v := range s.Values {
			cmd := "L"
			if i == 0 {
				cmd = "M"
			}
			fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, centerX(i), yOf(v))
		}
		fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"></path>`, strings.TrimSpace(path.String()), color)
		for i, v := range s.Values {
			fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"></circle>`, centerX(i), yOf(v), color)
		}
	}

	for i, label := range c.Labels {
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, centerX(i), bottom+14, axisColor, template.HTMLEscapeString(label))
	}

	legendX, legendY := padding, math.Max(padding-14, 12)
	for si, s := range append(append([]Series{}, c.Bars...), c.Lines...) {
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, legendX, legendY-8, seriesColor(s, si))
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="start">%s</text>`, legendX+14, legendY, axisColor, template.HTMLEscapeString(fallback(s.Label, fmt.Sprintf("Series %d", si+1))))
		legendX += 100
	}

	b.WriteString("</svg>")
	return []byte(b.String()), nil
}

func seriesColor(s Series, i int) string {
	return fallback(s.Color, palette[i%len(palette)])
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

// bounds spans every value and always includes zero.
func bounds(groups ...[]Series) (float64, float64) {
	minVal, maxVal := 0.0, 0.0
	for _, group := range groups {
		for _, s := range group {
			for _, v := range s.Values {
				minVal = math.Min(minVal, v)
				maxVal = math.Max(maxVal, v)
			}
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		maxVal = minVal + 1
	}
	return minVal, maxVal
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case math.Abs(v-math.Round(v)) < 1e-9:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
