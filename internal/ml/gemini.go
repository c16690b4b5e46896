package ml

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/franckalain/cropguard/internal/apperrors"
	"github.com/franckalain/cropguard/internal/models"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiConfig holds configuration for the Gemini API-key classifier
type GeminiConfig struct {
	BaseConfig
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// Load loads the Gemini configuration
func (c *GeminiConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "gemini", c); err != nil {
		return err
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Model == "" {
		c.Model = defaultGeminiModel
	}
	return nil
}

// GeminiClassifier implements Classifier on the public Gemini API
type GeminiClassifier struct {
	config GeminiConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// GeminiClassifierFactory implements ClassifierFactory for Gemini
type GeminiClassifierFactory struct {
	config GeminiConfig
}

// NewGeminiClassifierFactory creates a new Gemini classifier factory
func NewGeminiClassifierFactory(config GeminiConfig) *GeminiClassifierFactory {
	return &GeminiClassifierFactory{config: config}
}

// CreateClassifier creates a new Gemini classifier instance
func (f *GeminiClassifierFactory) CreateClassifier() (Classifier, error) {
	return &GeminiClassifier{config: f.config}, nil
}

// Load creates the API client
func (m *GeminiClassifier) Load(ctx context.Context) error {
	if m.config.APIKey == "" {
		return apperrors.New(apperrors.ErrTypeConfig, "GEMINI_NOT_CONFIGURED", "GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.config.APIKey))
	if err != nil {
		return fmt.Errorf("failed to create new gemini client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.Model)
	m.model.SetTemperature(0.1)
	return nil
}

// Classify sends the photo to Gemini and parses the diagnosis
func (m *GeminiClassifier) Classify(ctx context.Context, imageData []byte) (*models.Diagnosis, error) {
	if m.model == nil {
		return nil, apperrors.ErrClassificationFailed.WithContext("reason", "model not loaded")
	}
	if len(imageData) == 0 {
		return nil, apperrors.ErrInvalidImage
	}

	resp, err := m.model.GenerateContent(ctx,
		genai.ImageData(imageFormat(imageData), imageData),
		genai.Text(diagnosisPrompt))
	if err != nil {
		return nil, apperrors.ErrClassificationFailed.Wrap(fmt.Errorf("failed to generate content: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return nil, apperrors.ErrClassificationFailed.WithContext("reason", "no candidates returned from Gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, apperrors.ErrClassificationFailed.WithContext("reason", "empty content returned from Gemini")
	}

	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return parseDiagnosis(string(txt))
	}
	return nil, apperrors.ErrClassificationFailed.WithContext("reason", "unexpected response format from Gemini")
}

// Close closes the API client
func (m *GeminiClassifier) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}
