package upi

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const (
	// DefaultSize is the rendered QR width in pixels.
	DefaultSize = 300
	// DefaultMargin is the quiet zone around the code, in modules.
	DefaultMargin = 2

	captionHeight = 36
	captionSize   = 14.0
)

// QROptions controls RenderPNG. Zero values pick the defaults.
type QROptions struct {
	Size    int
	Margin  int    // quiet zone in modules; negative for none
	Caption string // drawn under the code; empty for none
}

var (
	fontOnce   sync.Once
	parsedFont *truetype.Font
	fontErr    error
)

func captionFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		parsedFont, fontErr = freetype.ParseFont(goregular.TTF)
	})
	return parsedFont, fontErr
}

// RenderPNG encodes content as a QR code and returns PNG bytes.
func RenderPNG(content string, opts QROptions) ([]byte, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Margin < 0 {
		opts.Margin = 0
	} else if opts.Margin == 0 {
		opts.Margin = DefaultMargin
	}

	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	q.DisableBorder = true
	bitmap := q.Bitmap()

	modules := len(bitmap) + 2*opts.Margin
	scale := opts.Size / modules
	if scale < 1 {
		scale = 1
	}
	side := modules * scale
	offset := (opts.Size - side) / 2
	if offset < 0 {
		offset = 0
	}
	width := side + 2*offset

	height := width
	if opts.Caption != "" {
		height += captionHeight
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	origin := offset + opts.Margin*scale
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			r := image.Rect(origin+x*scale, origin+y*scale, origin+(x+1)*scale, origin+(y+1)*scale)
			draw.Draw(img, r, image.Black, image.Point{}, draw.Src)
		}
	}

	if opts.Caption != "" {
		if err := drawCaption(img, opts.Caption, width); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawCaption centres text in the band below the code, shortening it with
// an ellipsis when it does not fit.
func drawCaption(img *image.RGBA, text string, width int) error {
	f, err := captionFont()
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}

	face := truetype.NewFace(f, &truetype.Options{
		Size:    captionSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{33, 33, 33, 255}),
		Face: face,
	}

	maxWidth := width - 16
	runes := []rune(text)
	line := text
	for drawer.MeasureString(line).Ceil() > maxWidth && len(runes) > 1 {
		runes = runes[:len(runes)-1]
		line = string(runes) + "..."
	}

	advance := drawer.MeasureString(line).Ceil()
	top := img.Bounds().Dy() - captionHeight
	drawer.Dot = fixed.Point26_6{
		X: fixed.I((width - advance) / 2),
		Y: fixed.I(top + captionHeight/2 + int(captionSize)/2),
	}
	drawer.DrawString(line)
	return nil
}
