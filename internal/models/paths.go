// Package models resolves the on-disk locations of the OCR model files used
// by the paddle engine.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DetectionMobile   = "PP-OCRv5_mobile_det.onnx"
	DetectionServer   = "PP-OCRv5_server_det.onnx"
	RecognitionMobile = "PP-OCRv5_mobile_rec.onnx"
	RecognitionServer = "PP-OCRv5_server_rec.onnx"

	DictionaryPPOCRKeysV1 = "ppocr_keys_v1.txt"
)

// Model directory layout: <dir>/<type>/<variant>/<file> with a flat
// <dir>/<file> fallback.
const (
	TypeDetection    = "detection"
	TypeRecognition  = "recognition"
	TypeDictionaries = "dictionaries"

	VariantMobile = "mobile"
	VariantServer = "server"
)

// DefaultModelsDir is used relative to the project root.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "CRBOOK_MODELS_DIR"

// ErrModelNotFound is returned by ValidateModelExists.
var ErrModelNotFound = errors.New("model file not found")

// ModelInfo describes a known model file.
type ModelInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Variant     string `json:"variant,omitempty"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
}

// FindProjectRoot walks up from the working directory looking for go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// GetModelsDir picks the models directory.
// Priority: explicit argument, then $CRBOOK_MODELS_DIR, then <project root>/models.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if root, err := FindProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath returns the organized path if it exists, else the flat one.
func ResolveModelPath(modelsDir, modelType, variant, filename string) string {
	base := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(base, modelType, filename)
		if variant != "" && modelType != TypeDictionaries {
			organized = filepath.Join(base, modelType, variant, filename)
		}
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(base, filename)
}

func variantOf(useServer bool) string {
	if useServer {
		return VariantServer
	}
	return VariantMobile
}

// GetDetectionModelPath returns the path for the text detection model.
func GetDetectionModelPath(modelsDir string, useServer bool) string {
	name := DetectionMobile
	if useServer {
		name = DetectionServer
	}
	return ResolveModelPath(modelsDir, TypeDetection, variantOf(useServer), name)
}

// GetRecognitionModelPath returns the path for the text recognition model.
func GetRecognitionModelPath(modelsDir string, useServer bool) string {
	name := RecognitionMobile
	if useServer {
		name = RecognitionServer
	}
	return ResolveModelPath(modelsDir, TypeRecognition, variantOf(useServer), name)
}

// GetDictionaryPath returns the path for a dictionary file.
func GetDictionaryPath(modelsDir, filename string) string {
	if filename == "" {
		filename = DictionaryPPOCRKeysV1
	}
	return ResolveModelPath(modelsDir, TypeDictionaries, "", filename)
}

// ValidateModelExists checks that a model file is present.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return err
	}
	return nil
}

// ListAvailableModels returns the model files the paddle engine knows about.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{Name: "mobile-detection", Type: TypeDetection, Variant: VariantMobile,
			Description: "PP-OCRv5 mobile text detection", Filename: DetectionMobile},
		{Name: "server-detection", Type: TypeDetection, Variant: VariantServer,
			Description: "PP-OCRv5 server text detection", Filename: DetectionServer},
		{Name: "mobile-recognition", Type: TypeRecognition, Variant: VariantMobile,
			Description: "PP-OCRv5 mobile text recognition", Filename: RecognitionMobile},
		{Name: "server-recognition", Type: TypeRecognition, Variant: VariantServer,
			Description: "PP-OCRv5 server text recognition", Filename: RecognitionServer},
		{Name: "ppocr-keys-v1", Type: TypeDictionaries,
			Description: "PP-OCR character dictionary", Filename: DictionaryPPOCRKeysV1},
	}
}
