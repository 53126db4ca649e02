// gen-assets renders placeholder Discord Rich Presence art for tekkencord.
//
// Reads the asset keys and styling from data/assets.json, resolves a font per
// set, and renders a short centered label on each asset's background. Output
// goes to assets/discord/{set}/{key}.png, ready to upload to the Discord
// application's Rich Presence art assets.
//
// Font resolution per set:
//  1. Local file path from assets.json "font" field
//  2. Google Fonts download from "font_fallback" field (e.g. "google:Oswald:700")
//  3. Skip set with warning if neither is available
//
// Usage:
//
//	cd tools/generate-assets && go run .
//	cd tools/generate-assets && go run . -assets ../../data/assets.json -out ../../assets/discord
package main

import (
	"flag"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/image/font/opentype"
)

func main() {
	// Default paths assume running from tools/generate-assets/
	assetsFile := flag.String("assets", "../../data/assets.json", "Path to assets.json")
	outDir := flag.String("out", "../../assets/discord", "Base output directory (assets written to {out}/{set}/)")
	flag.Parse()

	repoRoot, err := filepath.Abs(filepath.Join(filepath.Dir(*assetsFile), ".."))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: resolve repo root: %v\n", err)
		os.Exit(1)
	}
	fontCacheDir := filepath.Join(repoRoot, "assets", "fonts", ".cache")

	data, err := LoadAssetData(*assetsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load assets: %v\n", err)
		os.Exit(1)
	}
	if len(data.Sets) == 0 {
		fmt.Fprintln(os.Stderr, "error: no sets defined in assets.json")
		os.Exit(1)
	}

	total := 0
	for _, setName := range slices.Sorted(maps.Keys(data.Sets)) {
		set := data.Sets[setName]
		fmt.Printf("[%s]\n", setName)

		if len(set.Assets) == 0 {
			fmt.Printf("  (no assets defined, skipping)\n")
			continue
		}

		fontBytes, err := resolveFont(set, repoRoot, fontCacheDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  skipping: %v\n", err)
			continue
		}
		otFont, err := opentype.Parse(fontBytes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  skipping: parse font: %v\n", err)
			continue
		}

		n, err := renderSet(data, setName, otFont, filepath.Join(*outDir, setName))
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
			os.Exit(1)
		}
		total += n
	}

	fmt.Printf("Done. Generated %d assets for %d sets.\n", total, len(data.Sets))
}

// renderSet writes one PNG per asset of setName into dir and returns how
// many were written.
func renderSet(data *AssetData, setName string, otFont *opentype.Font, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	keys := slices.Sorted(maps.Keys(data.Sets[setName].Assets))
	for _, key := range keys {
		style, label := data.Resolved(setName, key)
		png, err := RenderAsset(style, label, otFont)
		if err != nil {
			return 0, fmt.Errorf("render %s: %w", key, err)
		}
		outPath := filepath.Join(dir, key+".png")
		if err := os.WriteFile(outPath, png, 0o644); err != nil {
			return 0, fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Printf("  %s.png (%s)\n", key, label)
	}
	return len(keys), nil
}

// resolveFont loads the font for a set: the local file from set.Font
// (relative to repoRoot), then the Google Fonts spec in set.FontFallback.
func resolveFont(set AssetSet, repoRoot, fontCacheDir string) ([]byte, error) {
	if set.Font != "" {
		localPath := filepath.Join(repoRoot, set.Font)
		if data, err := os.ReadFile(localPath); err == nil {
			fmt.Printf("  font: %s (local)\n", set.Font)
			return maybeConvertWOFF2(localPath, data)
		}
	}

	if set.FontFallback != "" {
		if family, weight, ok := ParseGoogleFontSpec(set.FontFallback); ok {
			fmt.Printf("  font: %s wght@%s (Google Fonts)\n", family, weight)
			data, err := FetchGoogleFont(set.FontFallback, fontCacheDir)
			if err != nil {
				return nil, fmt.Errorf("google fonts fallback failed: %w", err)
			}
			return data, nil
		}
	}

	return nil, fmt.Errorf("no font configured (set \"font\" or \"font_fallback\" in assets.json)")
}
