// config.go defines the asset manifest types and JSON loading for the
// gen-assets tool. [AssetData] is the top-level structure deserialized from
// data/assets.json; [Style] holds the visual fields of one image.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Style holds the visual styling of one placeholder image.
type Style struct {
	// BgColor is the background hex color (e.g. "#B3122E").
	BgColor string `json:"bg_color,omitempty"`
	// FgColor is the foreground (label) hex color (e.g. "#FFFFFF").
	FgColor string `json:"fg_color,omitempty"`
	// Size is the square image dimension in pixels.
	Size int `json:"size,omitempty"`
	// FontSize is the font size in points at 72 DPI.
	FontSize int `json:"font_size,omitempty"`
}

// Asset is one image to render. An empty Label is derived from the key.
type Asset struct {
	Style
	Label string `json:"label,omitempty"`
}

// AssetSet groups images that share a font and default styling, such as the
// character portraits or the mode backdrops.
type AssetSet struct {
	// Font is the local font file path relative to the repo root.
	Font string `json:"font,omitempty"`
	// FontFallback is a Google Fonts spec (e.g. "google:Oswald:700") used
	// when the local font file is not found.
	FontFallback string `json:"font_fallback,omitempty"`
	// Defaults is inherited by every asset in the set.
	Defaults Style `json:"defaults"`
	// Assets maps Discord asset keys to their overrides.
	Assets map[string]Asset `json:"assets"`
}

// AssetData holds the manifest read from data/assets.json.
type AssetData struct {
	// Defaults provides base styling inherited by all sets.
	Defaults Style `json:"defaults"`
	// Sets maps a set name to its assets. The name is also the output
	// subdirectory.
	Sets map[string]AssetSet `json:"sets"`
}

// Resolved returns the effective style and label of one asset with all
// inheritance applied: global defaults -> set defaults -> asset overrides.
func (d *AssetData) Resolved(set, key string) (Style, string) {
	style := d.Defaults
	s, ok := d.Sets[set]
	if !ok {
		return style, DeriveLabel(key)
	}
	mergeStyle(&style, s.Defaults)
	a := s.Assets[key]
	mergeStyle(&style, a.Style)
	if a.Label != "" {
		return style, a.Label
	}
	return style, DeriveLabel(key)
}

// DeriveLabel builds a short label from an asset key: the initials of its
// underscore-separated words, or the first letter of a single word.
// "devil_jin" yields "DJ", "kazuya" yields "K".
func DeriveLabel(key string) string {
	var b strings.Builder
	for word := range strings.SplitSeq(key, "_") {
		if word == "" {
			continue
		}
		b.WriteString(strings.ToUpper(word[:1]))
		if b.Len() >= 2 {
			break
		}
	}
	return b.String()
}

// mergeStyle applies non-zero fields from src onto dst.
func mergeStyle(dst *Style, src Style) {
	if src.BgColor != "" {
		dst.BgColor = src.BgColor
	}
	if src.FgColor != "" {
		dst.FgColor = src.FgColor
	}
	if src.Size != 0 {
		dst.Size = src.Size
	}
	if src.FontSize != 0 {
		dst.FontSize = src.FontSize
	}
}

// LoadAssetData reads and parses an assets.json file.
func LoadAssetData(path string) (*AssetData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ad AssetData
	if err := json.Unmarshal(data, &ad); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &ad, nil
}
