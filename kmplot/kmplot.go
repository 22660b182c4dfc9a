// Package kmplot draws Kaplan-Meier survival curves.
package kmplot

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/carbocation/sigvival/survival"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Palette is the matplotlib tab10 cycle.
var Palette = []color.RGBA{
	{0x1f, 0x77, 0xb4, 0xff},
	{0xff, 0x7f, 0x0e, 0xff},
	{0x2c, 0xa0, 0x2c, 0xff},
	{0xd6, 0x27, 0x28, 0xff},
	{0x94, 0x67, 0xbd, 0xff},
	{0x8c, 0x56, 0x4b, 0xff},
	{0xe3, 0x77, 0xc2, 0xff},
	{0x7f, 0x7f, 0x7f, 0xff},
	{0xbc, 0xbd, 0x22, 0xff},
	{0x17, 0xbe, 0xcf, 0xff},
}

type Options struct {
	Width  int
	Height int

	// Title may span several lines separated by \n.
	Title       string
	XLabel      string
	YLabel      string
	LegendTitle string

	// ShowCI shades each curve's pointwise confidence band.
	ShowCI bool
}

// DefaultOptions is an 8x6 inch figure at 300 dpi.
func DefaultOptions() Options {
	return Options{
		Width:       2400,
		Height:      1800,
		XLabel:      "Time (days)",
		YLabel:      "Survival probability",
		LegendTitle: "NES",
		ShowCI:      true,
	}
}

// Title builds the two-line plot title: the signature name, then the log-rank
// P and the hazard ratio rounded to 4 decimal places.
func Title(signatureName string, cmp survival.Comparison) string {
	return fmt.Sprintf("%s\nP=%s, HR=%s", signatureName, round4(cmp.LogRank.P), round4(cmp.Cox.HR))
}

func round4(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NaN"
	}

	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}

// frame maps data coordinates onto pixels.
type frame struct {
	left, right, top, bottom float64
	xMax                     float64
}

func (f frame) x(t float64) float64 { return f.left + t/f.xMax*(f.right-f.left) }
func (f frame) y(s float64) float64 { return f.bottom - s/1.05*(f.bottom-f.top) }

// Render draws one step curve per group, starting from S(0)=1, with a "+" at
// each censoring. The legend lists each group with its size and the footer
// carries the hazard ratio with its confidence interval.
func Render(cmp survival.Comparison, opts Options) (image.Image, error) {
	if len(cmp.Curves) == 0 {
		return nil, fmt.Errorf("no survival curves to plot")
	}
	if opts.Width < 200 || opts.Height < 150 {
		return nil, fmt.Errorf("plot size %dx%d is too small", opts.Width, opts.Height)
	}

	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// 10pt text at 300 dpi on the default figure
	fontSize := float64(opts.Height) / 43
	face := func(scale float64) font.Face {
		return truetype.NewFace(ttf, &truetype.Options{Size: fontSize * scale})
	}

	W, H := float64(opts.Width), float64(opts.Height)
	titleLines := 0
	if opts.Title != "" {
		titleLines = len(strings.Split(opts.Title, "\n"))
	}

	f := frame{
		left:   0.11 * W,
		right:  0.97 * W,
		top:    0.04*H + float64(titleLines)*fontSize*1.5,
		bottom: 0.86 * H,
	}
	for _, c := range cmp.Curves {
		f.xMax = math.Max(f.xMax, c.MaxTime())
	}
	if f.xMax <= 0 {
		f.xMax = 1
	}
	xStep := niceStep(f.xMax, 6)
	f.xMax = math.Ceil(f.xMax/xStep) * xStep

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	drawAxes(dc, f, xStep, fontSize, face(1))

	lineWidth := fontSize / 8
	for i, c := range cmp.Curves {
		col := Palette[i%len(Palette)]
		if opts.ShowCI {
			drawBand(dc, f, c, col)
		}
		drawCurve(dc, f, c, col, lineWidth)
		drawCensors(dc, f, c, col, fontSize*0.35, lineWidth)
	}

	drawLegend(dc, f, cmp.Curves, opts.LegendTitle, fontSize, face(0.9))

	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(face(1))
	dc.DrawStringAnchored(opts.XLabel, (f.left+f.right)/2, H-0.035*H, 0.5, 0)
	dc.Push()
	dc.RotateAbout(-math.Pi/2, 0.025*W, (f.top+f.bottom)/2)
	dc.DrawStringAnchored(opts.YLabel, 0.025*W, (f.top+f.bottom)/2, 0.5, 0.5)
	dc.Pop()

	if opts.Title != "" {
		dc.SetFontFace(face(1.2))
		for i, line := range strings.Split(opts.Title, "\n") {
			dc.DrawStringAnchored(line, W/2, 0.04*H+float64(i)*fontSize*1.5, 0.5, 0.8)
		}
	}

	dc.SetFontFace(face(0.8))
	dc.SetRGB(0.25, 0.25, 0.25)
	dc.DrawStringAnchored(Footer(cmp), f.left+fontSize*0.5, f.bottom-fontSize*0.6, 0, 0)

	return dc.Image(), nil
}

// Footer summarizes the comparison on one line.
func Footer(cmp survival.Comparison) string {
	lr := cmp.LogRank
	if cmp.CoxErr != "" {
		return fmt.Sprintf("Log-rank chi2=%.3f (df=%d), P=%s; HR not estimable", lr.ChiSquare, lr.DF, round4(lr.P))
	}

	cox := cmp.Cox
	return fmt.Sprintf("Log-rank chi2=%.3f (df=%d), P=%s; HR=%s (%.0f%% CI %s-%s)",
		lr.ChiSquare, lr.DF, round4(lr.P), round4(cox.HR), 100*survival.ConfidenceLevel, round4(cox.Lower), round4(cox.Upper))
}

func drawAxes(dc *gg.Context, f frame, xStep, fontSize float64, face font.Face) {
	dc.SetFontFace(face)
	dc.SetLineWidth(fontSize / 12)
	tick := fontSize * 0.4

	for i := 0; float64(i)*xStep <= f.xMax*(1+1e-9); i++ {
		t := float64(i) * xStep
		x := f.x(t)
		dc.SetRGB(0.9, 0.9, 0.9)
		dc.DrawLine(x, f.top, x, f.bottom)
		dc.Stroke()

		dc.SetRGB(0, 0, 0)
		dc.DrawLine(x, f.bottom, x, f.bottom+tick)
		dc.Stroke()
		dc.DrawStringAnchored(strconv.FormatFloat(t, 'g', 6, 64), x, f.bottom+tick+fontSize*0.2, 0.5, 1)
	}

	for i := 0; i <= 5; i++ {
		s := float64(i) * 0.2
		y := f.y(s)
		dc.SetRGB(0.9, 0.9, 0.9)
		dc.DrawLine(f.left, y, f.right, y)
		dc.Stroke()

		dc.SetRGB(0, 0, 0)
		dc.DrawLine(f.left-tick, y, f.left, y)
		dc.Stroke()
		dc.DrawStringAnchored(strconv.FormatFloat(s, 'f', 1, 64), f.left-tick-fontSize*0.3, y, 1, 0.5)
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawRectangle(f.left, f.top, f.right-f.left, f.bottom-f.top)
	dc.Stroke()
}

func drawCurve(dc *gg.Context, f frame, c survival.Curve, col color.RGBA, lineWidth float64) {
	dc.SetColor(col)
	dc.SetLineWidth(lineWidth)

	prev := 1.0
	dc.MoveTo(f.x(0), f.y(prev))
	for _, p := range c.Points {
		dc.LineTo(f.x(p.Time), f.y(prev))
		dc.LineTo(f.x(p.Time), f.y(p.Survival))
		prev = p.Survival
	}
	dc.Stroke()
}

func drawBand(dc *gg.Context, f frame, c survival.Curve, col color.RGBA) {
	dc.SetRGBA255(int(col.R), int(col.G), int(col.B), 40)

	for i, p := range c.Points {
		if i+1 >= len(c.Points) || p.Upper <= p.Lower {
			continue
		}
		end := c.Points[i+1].Time
		dc.DrawRectangle(f.x(p.Time), f.y(p.Upper), f.x(end)-f.x(p.Time), f.y(p.Lower)-f.y(p.Upper))
		dc.Fill()
	}
}

func drawCensors(dc *gg.Context, f frame, c survival.Curve, col color.RGBA, size, lineWidth float64) {
	dc.SetColor(col)
	dc.SetLineWidth(lineWidth)

	for _, t := range c.CensorTimes {
		x, y := f.x(t), f.y(c.At(t))
		dc.DrawLine(x-size, y, x+size, y)
		dc.DrawLine(x, y-size, x, y+size)
		dc.Stroke()
	}
}

func drawLegend(dc *gg.Context, f frame, curves []survival.Curve, title string, fontSize float64, face font.Face) {
	dc.SetFontFace(face)

	entries := make([]string, len(curves))
	width, _ := dc.MeasureString(title)
	for i, c := range curves {
		entries[i] = fmt.Sprintf("%s (n=%d)", c.Label, c.N)
		w, _ := dc.MeasureString(entries[i])
		width = math.Max(width, w+fontSize*2.2)
	}

	pad := fontSize * 0.5
	rowHeight := fontSize * 1.4
	boxW := width + 2*pad
	boxH := float64(len(entries)+1)*rowHeight + 2*pad
	x0 := f.right - boxW - pad
	y0 := f.top + pad

	dc.SetRGBA(1, 1, 1, 0.85)
	dc.DrawRectangle(x0, y0, boxW, boxH)
	dc.Fill()
	dc.SetRGB(0.7, 0.7, 0.7)
	dc.SetLineWidth(fontSize / 16)
	dc.DrawRectangle(x0, y0, boxW, boxH)
	dc.Stroke()

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(title, x0+boxW/2, y0+pad+rowHeight/2, 0.5, 0.5)

	for i, e := range entries {
		y := y0 + pad + float64(i+1)*rowHeight + rowHeight/2
		dc.SetColor(Palette[i%len(Palette)])
		dc.SetLineWidth(fontSize / 8)
		dc.DrawLine(x0+pad, y, x0+pad+fontSize*1.6, y)
		dc.Stroke()

		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(e, x0+pad+fontSize*2.2, y, 0, 0.5)
	}
}

// niceStep picks a tick spacing of 1, 2, 2.5 or 5 times a power of ten that
// gives roughly n ticks over span.
func niceStep(span float64, n int) float64 {
	raw := span / float64(n)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if m*mag >= raw {
			return m * mag
		}
	}

	return 10 * mag
}

// Preview scales img to width pixels, keeping its aspect ratio.
func Preview(img image.Image, width int) image.Image {
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// DataURI encodes img as a base64 PNG data URI for inline display.
func DataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", pfx.Err(err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
