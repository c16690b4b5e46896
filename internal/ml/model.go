package ml

import (
	"context"
	"fmt"

	"github.com/franckalain/cropguard/internal/models"
)

// Classifier identifies crop disease in a photo
type Classifier interface {
	// Load initializes the classifier with its configuration
	Load(ctx context.Context) error
	// Classify takes an encoded image and returns a diagnosis
	Classify(ctx context.Context, imageData []byte) (*models.Diagnosis, error)
	// Close releases any client held by the classifier
	Close() error
}

// ClassifierFactory creates a classifier instance
type ClassifierFactory interface {
	CreateClassifier() (Classifier, error)
}

// NewClassifier creates a classifier of the given type. configPath points
// at an optional type-specific JSON file.
func NewClassifier(classifierType, configPath string) (Classifier, error) {
	var factory ClassifierFactory

	switch classifierType {
	case "local", "":
		config := LocalConfig{BaseConfig: BaseConfig{ConfigPath: configPath}}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load local config: %w", err)
		}
		factory = NewLocalClassifierFactory(config)
	case "google":
		config := GoogleConfig{BaseConfig: BaseConfig{ConfigPath: configPath}}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load Google config: %w", err)
		}
		factory = NewGoogleClassifierFactory(config)
	case "gemini":
		config := GeminiConfig{BaseConfig: BaseConfig{ConfigPath: configPath}}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load Gemini config: %w", err)
		}
		factory = NewGeminiClassifierFactory(config)
	default:
		return nil, fmt.Errorf("unsupported classifier type: %s", classifierType)
	}
	return factory.CreateClassifier()
}
