package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/crbook/internal/config"
	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/pdf"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
	"github.com/MeKo-Tech/crbook/internal/utils"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// newPipeline builds the local pipeline for a document type. Tests swap it
// for one backed by a scripted engine.
var newPipeline = func(cfg *config.Config, t doctype.Type) (*pipeline.Pipeline, error) {
	return cfg.NewPipeline(t)
}

// extractOptions are the resolved settings of one extract run.
type extractOptions struct {
	docType         doctype.Type
	format          string
	outputFile      string
	workers         int
	includeImage    bool
	continueOnError bool
	recursive       bool
	quiet           bool
	scan            pdf.Options
}

var extractCmd = newExtractCommand("extract [files or directories...]", "", `Extract the fields of document images with the local OCR pipeline.

The document type defaults to the CR book. Directories are expanded to the
supported images they contain (JPEG, PNG, BMP, TIFF, WebP) and scanned PDFs.
Every PDF page with an embedded photo is extracted as its own document.

Examples:
  crbook extract book.jpg
  crbook extract scans/ --recursive --workers 8 --format csv --output fields.csv
  crbook extract --doctype passport scan.png --include-image
  crbook extract scanned-book.pdf --pages 1-2`)

var licenceCmd = newExtractCommand("licence [files...]", doctype.Licence, `Extract the fields of driving licence images.

Examples:
  crbook licence front.jpg
  crbook licence front.jpg --format text`)

var passportCmd = newExtractCommand("passport [files...]", doctype.Passport, `Extract the fields of passport data pages.

Examples:
  crbook passport page.jpg --format json`)

func newExtractCommand(use string, fixed doctype.Type, long string) *cobra.Command {
	short := "Extract fields from CR book images"
	if fixed != "" {
		short = "Extract fields from " + fixed.Label() + " images"
	}
	c := &cobra.Command{
		Use:          use,
		Short:        short,
		Long:         long,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := GetConfig()
			if err != nil {
				return err
			}
			opts, err := resolveExtractOptions(cmd, cfg, fixed)
			if err != nil {
				return err
			}
			return runExtract(cmd, cfg, opts, args)
		},
	}
	if fixed == "" {
		c.Flags().StringP("doctype", "d", string(doctype.CRBook), "document type: crbook, licence or passport")
	}
	c.Flags().StringP("format", "f", outputFormatJSON, "output format: json, text or csv")
	c.Flags().StringP("output", "o", "", "write results to this file instead of stdout")
	c.Flags().IntP("workers", "w", 4, "documents processed in parallel")
	c.Flags().Bool("include-image", false, "include the base64 input image in JSON output")
	c.Flags().Bool("extended", false, "also extract the extended CR book fields")
	c.Flags().Bool("continue-on-error", false, "report failed images and keep going")
	c.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	c.Flags().BoolP("quiet", "q", false, "do not draw a progress bar")
	c.Flags().String("pages", "", "PDF pages to extract, e.g. 1-3 or 1,4 (default all)")
	c.Flags().String("pdf-password", "", "password of encrypted PDF inputs")
	return c
}

// resolveExtractOptions applies flag overrides to the configuration.
func resolveExtractOptions(cmd *cobra.Command, cfg *config.Config, fixed doctype.Type) (extractOptions, error) {
	opts := extractOptions{
		docType:         fixed,
		format:          cfg.Output.Format,
		outputFile:      cfg.Output.File,
		workers:         cfg.Batch.Workers,
		includeImage:    cfg.Output.IncludeImage,
		continueOnError: cfg.Batch.ContinueOnError,
	}
	flags := cmd.Flags()
	if opts.docType == "" {
		name, _ := flags.GetString("doctype")
		t, err := doctype.Parse(name)
		if err != nil {
			return opts, err
		}
		opts.docType = t
	}
	if flags.Changed("format") || opts.format == "" {
		opts.format, _ = flags.GetString("format")
	}
	opts.format = strings.ToLower(opts.format)
	if flags.Changed("output") {
		opts.outputFile, _ = flags.GetString("output")
	}
	if flags.Changed("workers") {
		opts.workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("include-image") {
		opts.includeImage, _ = flags.GetBool("include-image")
	}
	if flags.Changed("continue-on-error") {
		opts.continueOnError, _ = flags.GetBool("continue-on-error")
	}
	if flags.Changed("extended") {
		cfg.Pipeline.ExtendedFields, _ = flags.GetBool("extended")
	}
	opts.recursive, _ = flags.GetBool("recursive")
	opts.quiet, _ = flags.GetBool("quiet")
	opts.scan.Pages, _ = flags.GetString("pages")
	opts.scan.Password, _ = flags.GetString("pdf-password")
	if _, err := pdf.ParsePages(opts.scan.Pages); err != nil {
		return opts, fmt.Errorf("invalid --pages: %w", err)
	}

	switch opts.format {
	case outputFormatJSON, outputFormatText, outputFormatCSV:
	default:
		return opts, fmt.Errorf("invalid output format: %s (must be one of: json, text, csv)", opts.format)
	}
	if opts.workers <= 0 {
		return opts, fmt.Errorf("invalid worker count: %d (must be positive)", opts.workers)
	}
	return opts, nil
}

func runExtract(cmd *cobra.Command, cfg *config.Config, opts extractOptions, args []string) error {
	paths, err := collectImages(args, opts.recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no supported images found")
	}

	inputs, err := loadInputs(paths, opts.scan)
	if err != nil {
		return err
	}

	pl, err := newPipeline(cfg, opts.docType)
	if err != nil {
		return fmt.Errorf("failed to build %s pipeline: %w", opts.docType, err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	bc := pipeline.BatchConfig{MaxWorkers: opts.workers}
	if len(inputs) > 1 && !opts.quiet {
		bc.Progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Extracting ")
	}
	batch, err := pl.ProcessBatch(ctx, inputs, bc)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(batch))
	results := make([]*pipeline.Result, 0, len(batch))
	var failed []string
	for _, br := range batch {
		if br.Err != nil {
			slog.Error("Extraction failed", "file", br.Name, "error", br.Err)
			failed = append(failed, br.Name)
			continue
		}
		names = append(names, br.Name)
		results = append(results, br.Result)
	}
	if len(failed) > 0 && !opts.continueOnError {
		return fmt.Errorf("extraction failed for %d of %d image(s): %s", len(failed), len(batch), strings.Join(failed, ", "))
	}

	body, err := formatResults(opts, names, results)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, opts.outputFile, body); err != nil {
		return err
	}
	if len(failed) > 0 {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d image(s) failed\n", len(failed))
	}
	return nil
}

func formatResults(opts extractOptions, names []string, results []*pipeline.Result) (string, error) {
	switch opts.format {
	case outputFormatText:
		var sb strings.Builder
		for i, res := range results {
			text, err := pipeline.ToText(res)
			if err != nil {
				return "", err
			}
			if len(results) > 1 {
				if i > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString("== " + names[i] + " ==\n")
			}
			sb.WriteString(text + "\n")
		}
		return sb.String(), nil
	case outputFormatCSV:
		if len(results) == 1 {
			return pipeline.ToCSV(results[0])
		}
		return pipeline.ToCSVBatch(names, results)
	default:
		if len(results) == 1 {
			out, err := pipeline.ToJSON(results[0], opts.includeImage)
			return out + "\n", err
		}
		out, err := pipeline.ToJSONBatch(results, opts.includeImage)
		return out + "\n", err
	}
}

// loadInputs reads image files as they are and splits PDFs into one PNG per
// page, named "<file>#page<N>".
func loadInputs(paths []string, pdfOpts pdf.Options) ([]pipeline.Input, error) {
	inputs := make([]pipeline.Input, 0, len(paths))
	for _, p := range paths {
		if !pdf.IsPDF(p) {
			data, err := utils.ReadImageFile(p)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", p, err)
			}
			inputs = append(inputs, pipeline.Input{Name: p, Data: data})
			continue
		}
		pages, err := pdf.ScanPages(p, pdfOpts)
		if err != nil {
			return nil, err
		}
		for _, page := range pages {
			data, err := utils.EncodeImage(page.Image, "png")
			if err != nil {
				return nil, fmt.Errorf("encode %s page %d: %w", p, page.Number, err)
			}
			inputs = append(inputs, pipeline.Input{Name: fmt.Sprintf("%s#page%d", p, page.Number), Data: data})
		}
		slog.Debug("Scanned PDF", "file", p, "pages", len(pages))
	}
	return inputs, nil
}

// collectImages expands directories into their supported images and PDFs. Explicit
// files are kept even when their extension is unknown so that reading them
// reports the problem.
func collectImages(args []string, recursive bool) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if utils.IsSupportedImage(path) || pdf.IsPDF(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

func writeOutput(cmd *cobra.Command, path, body string) error {
	if path == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), body)
		return err
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil { //nolint:gosec // G306: results are not secret
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Info("Results written", "file", path)
	return nil
}

func init() {
	rootCmd.AddCommand(extractCmd, licenceCmd, passportCmd)
}
