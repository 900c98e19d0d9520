package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
	"github.com/MeKo-Tech/crbook/internal/server"
	"github.com/MeKo-Tech/crbook/internal/utils"
	"github.com/MeKo-Tech/crbook/internal/vision"
)

// newVisionExtractor creates the vision model client; tests replace it.
var newVisionExtractor = func(cfg vision.Config) (server.VisionExtractor, error) {
	return vision.NewFromConfig(cfg)
}

var visionCmd = &cobra.Command{
	Use:   "vision <doctype> <image>",
	Short: "Extract document fields with a vision language model",
	Long: `Send a document image to a vision language model and print the fields it
reads. API keys come from the environment or the env file named in the
vision configuration (OPENAI_API_KEY, ANTHROPIC_API_KEY, MISTRAL_API_KEY).

Examples:
  crbook vision crbook book.jpg
  crbook vision passport page.png --provider anthropic --model claude-3-5-sonnet-latest
  crbook vision licence front.jpg --provider ollama --model llava --format text`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		t, err := doctype.Parse(args[0])
		if err != nil {
			return err
		}

		vc := cfg.Vision
		flags := cmd.Flags()
		if flags.Changed("provider") {
			vc.Provider, _ = flags.GetString("provider")
		}
		if flags.Changed("model") {
			vc.Model, _ = flags.GetString("model")
		}
		if flags.Changed("base-url") {
			vc.BaseURL, _ = flags.GetString("base-url")
		}
		format, _ := flags.GetString("format")
		format = strings.ToLower(format)
		switch format {
		case outputFormatJSON, outputFormatText, outputFormatCSV:
		default:
			return fmt.Errorf("invalid output format: %s (must be one of: json, text, csv)", format)
		}
		includeImage, _ := flags.GetBool("include-image")
		outputFile, _ := flags.GetString("output")

		data, err := utils.ReadImageFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}
		oracle, err := newVisionExtractor(vc)
		if err != nil {
			return fmt.Errorf("failed to create vision client: %w", err)
		}
		res, err := oracle.Extract(cmd.Context(), t, data)
		if err != nil {
			return fmt.Errorf("vision extraction failed: %w", err)
		}

		body, err := formatResults(extractOptions{format: format, includeImage: includeImage},
			[]string{args[1]}, []*pipeline.Result{res})
		if err != nil {
			return err
		}
		return writeOutput(cmd, outputFile, body)
	},
}

func init() {
	rootCmd.AddCommand(visionCmd)
	visionCmd.Flags().String("provider", "", "vision provider: openai, anthropic, mistral or ollama")
	visionCmd.Flags().String("model", "", "model name")
	visionCmd.Flags().String("base-url", "", "override the provider endpoint")
	visionCmd.Flags().StringP("format", "f", outputFormatJSON, "output format: json, text or csv")
	visionCmd.Flags().StringP("output", "o", "", "write the result to this file instead of stdout")
	visionCmd.Flags().Bool("include-image", false, "include the base64 input image in JSON output")
}
