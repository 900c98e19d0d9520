// Package pdf pulls document photos out of scanned PDF files.
//
// Scanners and phone apps often deliver a CR book or licence as a PDF with
// one embedded raster image per page. ScanPages returns the largest image of
// every selected page so that it can be fed to an extraction pipeline.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoImages is returned when none of the selected pages embeds an image.
var ErrNoImages = errors.New("no embedded images found")

// ErrMalformed is returned when the PDF structure cannot be parsed.
var ErrMalformed = errors.New("malformed pdf")

// Options selects pages and unlocks encrypted files.
type Options struct {
	// Pages is a page selection such as "1", "1-3" or "1,4-5"; empty
	// selects every page.
	Pages string
	// Password opens encrypted files. It is used as user and owner password.
	Password string
}

// Page is the photo found on one PDF page.
type Page struct {
	Number int
	Image  image.Image
}

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// ScanPages returns the largest embedded image of each selected page in page
// order. Pages without images are skipped; images that cannot be decoded are
// ignored.
func ScanPages(path string, opts Options) ([]Page, error) {
	pages, err := ParsePages(opts.Pages)
	if err != nil {
		return nil, fmt.Errorf("invalid page selection %q: %w", opts.Pages, err)
	}
	var selected []string
	for _, p := range pages {
		selected = append(selected, strconv.Itoa(p))
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading a user-provided PDF is the point
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	conf := model.NewDefaultConfiguration()
	if opts.Password != "" {
		conf.UserPW = opts.Password
		conf.OwnerPW = opts.Password
	}

	best := make(map[int]image.Image)
	digest := func(img model.Image, _ bool, _ int) error {
		decoded, err := imaging.Decode(img)
		if err != nil {
			return nil //nolint:nilerr // undecodable image streams are skipped
		}
		if cur, ok := best[img.PageNr]; !ok || area(decoded) > area(cur) {
			best[img.PageNr] = decoded
		}
		return nil
	}
	if err := extractImages(f, selected, digest, conf); err != nil {
		return nil, fmt.Errorf("failed to extract images from %s: %w", filepath.Base(path), err)
	}
	if len(best) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoImages)
	}
	return sortedPages(best), nil
}

// extractImages runs pdfcpu and turns a panic on malformed input into an
// error.
func extractImages(rs io.ReadSeeker, selected []string, digest func(model.Image, bool, int) error, conf *model.Configuration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()
	return api.ExtractImages(rs, selected, digest, conf)
}

func area(img image.Image) int {
	b := img.Bounds()
	return b.Dx() * b.Dy()
}

func sortedPages(m map[int]image.Image) []Page {
	out := make([]Page, 0, len(m))
	for n, img := range m {
		out = append(out, Page{Number: n, Image: img})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// ParsePages parses a selection like "1-5" or "1,3,5" into ascending,
// distinct page numbers. An empty selection returns nil.
func ParsePages(selection string) ([]int, error) {
	if strings.TrimSpace(selection) == "" {
		return nil, nil
	}
	seen := make(map[int]bool)
	for _, part := range strings.Split(selection, ",") {
		pages, err := parseToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			seen[p] = true
		}
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}

func parseToken(token string) ([]int, error) {
	from, to, isRange := strings.Cut(token, "-")
	start, err := pageNumber(from)
	if err != nil {
		return nil, err
	}
	if !isRange {
		return []int{start}, nil
	}
	end, err := pageNumber(to)
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out, nil
}

func pageNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid page number: %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("page numbers start at 1, got %d", n)
	}
	return n, nil
}
