// ABOUTME: Renders quickdial names onto a phone keypad background image
// ABOUTME: Labels for digits 2 to 9 are placed on a fixed three column grid
package keypad

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

// Layout positions labels on the keypad grid.
type Layout struct {
	Columns     [3]float64 // x for digits with remainder 1, 2 and 0 modulo 3
	BaseY       float64
	LineSpacing float64
	FontSize    float64
	Color       color.RGBA
	Quality     int
}

// DefaultLayout matches the keypad picture shown by FRITZ!Fon handsets.
var DefaultLayout = Layout{
	Columns:     [3]float64{19, 178, 342},
	BaseY:       74,
	LineSpacing: 100,
	FontSize:    20,
	Color:       color.RGBA{R: 38, G: 142, B: 223, A: 255},
	Quality:     100,
}

const (
	templateWidth  = 480
	templateHeight = 320

	// MaxLabel is the longest label in runes that fits a keypad cell.
	MaxLabel = 10
)

// Renderer draws labels onto a template image.
type Renderer struct {
	Template image.Image
	Face     font.Face
	Layout   Layout
}

// NewRenderer creates a renderer. An empty templatePath selects the built-in
// keypad drawing and an empty fontPath the embedded Go Bold face.
func NewRenderer(templatePath, fontPath string, layout Layout) (*Renderer, error) {
	var tmpl image.Image
	if templatePath == "" {
		tmpl = DefaultTemplate()
	} else {
		img, err := gg.LoadImage(templatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load keypad template: %w", err)
		}
		tmpl = img
	}

	var face font.Face
	if fontPath == "" {
		f, err := truetype.Parse(gobold.TTF)
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedded font: %w", err)
		}
		face = truetype.NewFace(f, &truetype.Options{Size: layout.FontSize})
	} else {
		f, err := gg.LoadFontFace(fontPath, layout.FontSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load font: %w", err)
		}
		face = f
	}

	return &Renderer{Template: tmpl, Face: face, Layout: layout}, nil
}

// DefaultTemplate draws a plain keypad with the digits 1 to 9 in a 3x3 grid.
func DefaultTemplate() image.Image {
	dc := gg.NewContext(templateWidth, templateHeight)
	dc.SetRGB255(250, 250, 250)
	dc.Clear()

	cellW := float64(templateWidth) / 3
	cellH := 100.0
	dc.SetRGB255(210, 210, 210)
	dc.SetLineWidth(1)
	for col := 1; col < 3; col++ {
		x := cellW * float64(col)
		dc.DrawLine(x, 20, x, 320)
	}
	for row := 1; row < 3; row++ {
		y := 20 + cellH*float64(row)
		dc.DrawLine(0, y, templateWidth, y)
	}
	dc.Stroke()

	dc.SetRGB255(150, 150, 150)
	for digit := 1; digit <= 9; digit++ {
		col := (digit - 1) % 3
		row := (digit - 1) / 3
		dc.DrawStringAnchored(strconv.Itoa(digit), cellW*float64(col)+cellW-16, 20+cellH*float64(row)+16, 0.5, 0.5)
	}
	return dc.Image()
}

// Position returns the baseline origin of the label for digit.
func (l Layout) Position(digit int) (x, y float64, ok bool) {
	if digit < 2 || digit > 9 {
		return 0, 0, false
	}
	switch digit % 3 {
	case 1:
		x = l.Columns[0]
	case 2:
		x = l.Columns[1]
	default:
		x = l.Columns[2]
	}
	row := (digit - 1) / 3
	return x, l.BaseY + l.LineSpacing*float64(row), true
}

// Render draws labels keyed by quickdial digit and returns JPEG bytes.
// Labels longer than MaxLabel runes are cut.
func (r *Renderer) Render(labels map[int]string) ([]byte, error) {
	dc := gg.NewContextForImage(r.Template)
	if r.Face != nil {
		dc.SetFontFace(r.Face)
	}
	dc.SetColor(r.Layout.Color)

	for digit, label := range labels {
		x, y, ok := r.Layout.Position(digit)
		if !ok || label == "" {
			continue
		}
		if runes := []rune(label); len(runes) > MaxLabel {
			label = string(runes[:MaxLabel])
		}
		dc.DrawString(label, x, y)
	}

	quality := r.Layout.Quality
	if quality <= 0 {
		quality = 100
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dc.Image(), imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode keypad image: %w", err)
	}
	return buf.Bytes(), nil
}
