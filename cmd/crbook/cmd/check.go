package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/crbook/internal/config"
	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/models"
	"github.com/MeKo-Tech/crbook/internal/version"
)

// checkCmd verifies that the configured OCR engine can be created.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the OCR engine setup and model files",
	Long: `Check that the configured OCR engine can be created and that every
document pipeline builds.

For the paddle engine this needs ONNX Runtime and the detection and
recognition models under the models directory. The tesseract engine needs a
binary built with -tags tesseract.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "crbook %s\n", version.String())
		_, _ = fmt.Fprintf(out, "OCR engine: %s\n", cfg.OCR.Engine)
		if cfg.OCR.Engine == config.EnginePaddle {
			_, _ = fmt.Fprintf(out, "Models directory: %s\n", models.GetModelsDir(cfg.ModelsDir))
		}

		failed := 0
		for _, t := range doctype.All() {
			p, err := newPipeline(cfg, t)
			if err != nil {
				failed++
				_, _ = fmt.Fprintf(out, "  %-9s FAIL %v\n", t, err)
				continue
			}
			_, _ = fmt.Fprintf(out, "  %-9s ok   engine=%s fields=%d\n", t, p.EngineName(), len(p.FieldNames()))
			_ = p.Close()
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d pipelines could not be built", failed, len(doctype.All()))
		}
		_, _ = fmt.Fprintln(out, "All pipelines ready.")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		v, commit, date := version.Info()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "crbook version %s\nCommit: %s\nBuilt: %s\n", v, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd, versionCmd)
}
