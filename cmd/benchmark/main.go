package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/MeKo-Tech/crbook/internal/benchmark"
	"github.com/MeKo-Tech/crbook/internal/config"
	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/utils"
)

func main() {
	var (
		configFile = flag.String("config", "", "configuration file (default: search the usual paths)")
		docType    = flag.String("doctype", string(doctype.CRBook), "document type: crbook, licence or passport")
		engine     = flag.String("engine", "", "override the OCR engine: paddle or tesseract")
		useGPU     = flag.Bool("gpu", false, "run the paddle engine on the CUDA provider")
		iterations = flag.Int("iterations", 5, "timed runs per image")
		warmup     = flag.Int("warmup", 1, "untimed runs per image before timing")
		outputFile = flag.String("output", "", "write CSV results to this file")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] image...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Measure extraction latency of the local pipeline.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := run(*configFile, *docType, *engine, *useGPU, *iterations, *warmup, *outputFile, flag.Args()); err != nil {
		slog.Error("Benchmark failed", "error", err)
		os.Exit(1)
	}
}

func run(configFile, docType, engine string, useGPU bool, iterations, warmup int, outputFile string, images []string) error {
	t, err := doctype.Parse(docType)
	if err != nil {
		return err
	}
	loader := config.NewLoader()
	var cfg *config.Config
	if configFile != "" {
		cfg, err = loader.LoadWithFile(configFile)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return err
	}
	if engine != "" {
		cfg.OCR.Engine = engine
	}
	if useGPU {
		cfg.OCR.Paddle.GPU.UseGPU = true
	}

	p, err := cfg.NewPipeline(t)
	if err != nil {
		return fmt.Errorf("failed to build %s pipeline: %w", t, err)
	}
	defer func() { _ = p.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("crbook extraction benchmark: %s, engine %s, gpu %t\n", t.Label(), p.EngineName(), useGPU)
	runner := &benchmark.Runner{Extractor: p, Iterations: iterations, Warmup: warmup}
	results := make([]benchmark.Result, 0, len(images))
	for _, path := range images {
		data, err := utils.ReadImageFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		res, err := runner.Run(ctx, path, data)
		if err != nil {
			return err
		}
		fmt.Println(res.String())
		results = append(results, res)
	}

	if outputFile == "" {
		return nil
	}
	f, err := os.Create(outputFile) //nolint:gosec // G304: output path comes from the user
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := benchmark.WriteCSV(f, results); err != nil {
		return err
	}
	fmt.Printf("Results saved to: %s\n", outputFile)
	return nil
}
