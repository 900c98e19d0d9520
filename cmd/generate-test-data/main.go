package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/testutil"
)

// sample is one synthetic document photo.
type sample struct {
	File    string       `json:"file"`
	DocType doctype.Type `json:"doctype"`
	// Outline is the expected frame in pixel coordinates of the upright
	// image; it is omitted for rotated variants.
	Outline *image.Rectangle `json:"outline,omitempty"`
	Rotated float64          `json:"rotated,omitempty"`
	Labels  []string         `json:"labels"`
}

// documentLabels are printed inside the outline of each document type.
var documentLabels = map[doctype.Type][]string{
	doctype.CRBook: {
		"CERTIFICATE OF REGISTRATION",
		"1. Registration No.  WP CAB-1234",
		"2. Chassis No.  MA3FJF12S00123456",
		"3. Engine No.  K12MN1234567",
		"4. Cylinder Capacity  1197.00 cc",
	},
	doctype.Licence: {
		"DRIVING LICENCE",
		"5.B1234567",
		"4d.851234567V",
		"3. 01.01.1985",
	},
	doctype.Passport: {
		"PASSPORT",
		"Passport No N1234567",
		"National ID No 851234567V",
		"SRI LANKA",
	},
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "testdata/documents", "output directory, relative to the project root")
		rotate  = flag.Float64("rotate", 4, "also write variants rotated by this many degrees (0 disables)")
		quality = flag.Int("jpeg-quality", 85, "JPEG quality of the photo variants")
		help    = flag.Bool("h", false, "Show help")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic document photos for crbook testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	dir := filepath.Join(root, *outDir)
	if err := testutil.EnsureDir(dir); err != nil {
		slog.Error("Failed to create output directory", "dir", dir, "error", err)
		os.Exit(1)
	}

	samples, err := generate(dir, *rotate, *quality)
	if err != nil {
		slog.Error("Failed to generate documents", "error", err)
		os.Exit(1)
	}
	if err := writeManifest(filepath.Join(dir, "manifest.json"), samples); err != nil {
		slog.Error("Failed to write manifest", "error", err)
		os.Exit(1)
	}
	slog.Info("Test data generation completed", "dir", dir, "files", len(samples))
}

func generate(dir string, rotate float64, quality int) ([]sample, error) {
	var out []sample
	for _, t := range doctype.All() {
		spec := documentSpec(t)
		img := testutil.DrawOutline(spec)
		outline := image.Rect(spec.Left, spec.Top, spec.Right, spec.Bottom)

		name := string(t) + ".png"
		if err := imaging.Save(img, filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("save %s: %w", name, err)
		}
		out = append(out, sample{File: name, DocType: t, Outline: &outline, Labels: documentLabels[t]})

		name = string(t) + "_photo.jpg"
		photo := imaging.AdjustContrast(imaging.Blur(img, 0.6), -10)
		if err := imaging.Save(photo, filepath.Join(dir, name), imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("save %s: %w", name, err)
		}
		out = append(out, sample{File: name, DocType: t, Outline: &outline, Labels: documentLabels[t]})

		if rotate != 0 {
			name = fmt.Sprintf("%s_rotated.png", t)
			if err := imaging.Save(imaging.Rotate(img, rotate, color.White), filepath.Join(dir, name)); err != nil {
				return nil, fmt.Errorf("save %s: %w", name, err)
			}
			out = append(out, sample{File: name, DocType: t, Rotated: rotate, Labels: documentLabels[t]})
		}
		slog.Info("Generated document", "doctype", t)
	}
	return out, nil
}

// documentSpec lays the labels out one per row inside a wide frame.
func documentSpec(t doctype.Type) testutil.OutlineSpec {
	spec := testutil.DefaultOutlineSpec()
	spec.Width, spec.Height = 800, 560
	spec.Left, spec.Right = 60, 740
	spec.Top, spec.Bottom = 40, 520
	for i, text := range documentLabels[t] {
		y := spec.Top + 50 + i*60
		spec.Labels = append(spec.Labels, testutil.Label{X: spec.Left + 30, Y: y, Text: text})
		if t == doctype.CRBook && i > 0 {
			spec.InnerRules = append(spec.InnerRules, y+20)
		}
	}
	return spec
}

func writeManifest(path string, samples []sample) error {
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644) //nolint:gosec // G306: test data is not secret
}
