package paddle

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/MeKo-Tech/crbook/internal/models"
	ort "github.com/yalue/onnxruntime_go"
)

// EnvRuntimeLibrary points at an explicit onnxruntime shared library.
const EnvRuntimeLibrary = "CRBOOK_ONNXRUNTIME_LIB"

// GPUConfig controls the optional CUDA execution provider.
type GPUConfig struct {
	UseGPU              bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
	DeviceID            int    `mapstructure:"device_id" yaml:"device_id" json:"device_id"`
	MemLimit            uint64 `mapstructure:"mem_limit" yaml:"mem_limit" json:"mem_limit"`
	ArenaExtendStrategy string `mapstructure:"arena_extend_strategy" yaml:"arena_extend_strategy" json:"arena_extend_strategy"`
}

// Validate checks the GPU settings; nothing is checked when the GPU is off.
func (g GPUConfig) Validate() error {
	if !g.UseGPU {
		return nil
	}
	if g.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", g.DeviceID)
	}
	switch g.ArenaExtendStrategy {
	case "", "kNextPowerOfTwo", "kSameAsRequested":
		return nil
	default:
		return fmt.Errorf("invalid arena extend strategy: %s", g.ArenaExtendStrategy)
	}
}

func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// libraryCandidates lists shared library locations in lookup order.
func libraryCandidates(useGPU bool) []string {
	var out []string
	if p := os.Getenv(EnvRuntimeLibrary); p != "" {
		out = append(out, p)
	}
	if useGPU {
		out = append(out, "/opt/onnxruntime/gpu/lib/libonnxruntime.so")
	}
	out = append(out,
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	)
	if root, err := models.FindProjectRoot(); err == nil {
		if name, err := libraryName(); err == nil {
			if useGPU {
				out = append(out, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
			}
			out = append(out, filepath.Join(root, "onnxruntime", "lib", name))
		}
	}
	return out
}

var (
	envOnce sync.Once
	envErr  error
)

// ErrRuntimeUnavailable is returned when no onnxruntime library can be loaded.
var ErrRuntimeUnavailable = errors.New("onnxruntime library not available")

// initRuntime locates the shared library and initializes the process-wide
// onnxruntime environment once.
func initRuntime(useGPU bool) error {
	envOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		found := false
		for _, p := range libraryCandidates(useGPU) {
			if _, err := os.Stat(p); err == nil {
				ort.SetSharedLibraryPath(p)
				slog.Debug("Using onnxruntime library", "path", p)
				found = true
				break
			}
		}
		if !found {
			envErr = ErrRuntimeUnavailable
			return
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return envErr
}

func configureGPU(opts *ort.SessionOptions, gpu GPUConfig) error {
	if !gpu.UseGPU {
		return nil
	}
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("create CUDA provider options: %w", err)
	}
	defer func() {
		if err := cuda.Destroy(); err != nil {
			slog.Warn("Failed to destroy CUDA provider options", "error", err)
		}
	}()

	settings := map[string]string{"device_id": strconv.Itoa(gpu.DeviceID)}
	if gpu.MemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(gpu.MemLimit, 10)
	}
	if gpu.ArenaExtendStrategy != "" {
		settings["arena_extend_strategy"] = gpu.ArenaExtendStrategy
	}
	if err := cuda.Update(settings); err != nil {
		return fmt.Errorf("update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("append CUDA execution provider: %w", err)
	}
	return nil
}

// session wraps a single-input single-output model.
type session struct {
	path    string
	input   ort.InputOutputInfo
	output  ort.InputOutputInfo
	runtime *ort.DynamicAdvancedSession
}

func openSession(path string, threads int, gpu GPUConfig) (*session, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("read model info %s: %w", path, err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("model %s: expected 1 input and 1 output, got %d and %d",
			path, len(inputs), len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return nil, fmt.Errorf("model %s: expected 4D input tensor, got %dD", path, len(inputs[0].Dimensions))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()
	if err := configureGPU(opts, gpu); err != nil {
		// CPU execution still works.
		slog.Warn("GPU unavailable, falling back to CPU", "error", err)
	}
	if threads > 0 {
		if err := opts.SetIntraOpNumThreads(threads); err != nil {
			return nil, fmt.Errorf("set thread count: %w", err)
		}
	}

	rt, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", path, err)
	}
	return &session{path: path, input: inputs[0], output: outputs[0], runtime: rt}, nil
}

// run feeds one NCHW float tensor and returns the output data and shape.
func (s *session) run(data []float32, shape ...int64) ([]float32, []int64, error) {
	in, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() {
		if err := in.Destroy(); err != nil {
			slog.Warn("Failed to destroy input tensor", "error", err)
		}
	}()

	outputs := []ort.Value{nil}
	if err := s.runtime.Run([]ort.Value{in}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	out := outputs[0]
	defer func() {
		if err := out.Destroy(); err != nil {
			slog.Warn("Failed to destroy output tensor", "error", err)
		}
	}()

	ft, ok := out.(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", out)
	}
	// The tensor data is released with the tensor.
	res := make([]float32, len(ft.GetData()))
	copy(res, ft.GetData())
	outShape := out.GetShape()
	return res, append([]int64(nil), outShape...), nil
}

func (s *session) close() error {
	if s == nil || s.runtime == nil {
		return nil
	}
	err := s.runtime.Destroy()
	s.runtime = nil
	return err
}
