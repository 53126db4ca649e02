// render.go implements PNG asset rendering for the gen-assets tool.
// [RenderAsset] produces a square PNG image with a short centered label drawn
// on a solid background, sized according to [Style].

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// RenderAsset renders one placeholder: label centered on a colored square.
// Returns the PNG bytes.
func RenderAsset(style Style, label string, otFont *opentype.Font) ([]byte, error) {
	if label == "" {
		return nil, fmt.Errorf("empty label")
	}
	if style.Size <= 0 || style.FontSize <= 0 {
		return nil, fmt.Errorf("size and font_size must be positive, got %d and %d", style.Size, style.FontSize)
	}

	bgColor, err := ParseHexColor(style.BgColor)
	if err != nil {
		return nil, fmt.Errorf("parse bg_color: %w", err)
	}
	fgColor, err := ParseHexColor(style.FgColor)
	if err != nil {
		return nil, fmt.Errorf("parse fg_color: %w", err)
	}

	size := style.Size

	face, err := opentype.NewFace(otFont, &opentype.FaceOptions{
		Size:    float64(style.FontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	// Center on the inked pixel bounds.
	bounds, _ := font.BoundString(face, label)

	glyphW := (bounds.Max.X - bounds.Min.X).Ceil()
	glyphH := (bounds.Max.Y - bounds.Min.Y).Ceil()

	originX := (size-glyphW)/2 - bounds.Min.X.Floor()
	originY := (size-glyphH)/2 - bounds.Min.Y.Floor()

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(bgColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fgColor),
		Face: face,
		Dot:  fixed.P(originX, originY),
	}
	d.DrawString(label)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
