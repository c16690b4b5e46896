package ml

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"

	"github.com/franckalain/cropguard/internal/apperrors"
	"github.com/franckalain/cropguard/internal/models"
)

const defaultVertexModel = "gemini-1.5-flash"

// GoogleConfig holds configuration for the Vertex AI classifier
type GoogleConfig struct {
	BaseConfig
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	Model           string `json:"model"`
}

// Load loads the Google configuration
func (c *GoogleConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "google", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	if c.ProjectID == "" {
		c.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if c.Location == "" {
		c.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if c.Model == "" {
		c.Model = defaultVertexModel
	}

	return nil
}

// GoogleClassifier implements Classifier on Vertex AI Gemini
type GoogleClassifier struct {
	config GoogleConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// GoogleClassifierFactory implements ClassifierFactory for Vertex AI
type GoogleClassifierFactory struct {
	config GoogleConfig
}

// NewGoogleClassifierFactory creates a new Google classifier factory
func NewGoogleClassifierFactory(config GoogleConfig) *GoogleClassifierFactory {
	return &GoogleClassifierFactory{config: config}
}

// CreateClassifier creates a new Google classifier instance
func (f *GoogleClassifierFactory) CreateClassifier() (Classifier, error) {
	return &GoogleClassifier{config: f.config}, nil
}

// Load initializes the Vertex AI client
func (m *GoogleClassifier) Load(ctx context.Context) error {
	if m.config.ProjectID == "" || m.config.Location == "" {
		return apperrors.New(apperrors.ErrTypeConfig, "VERTEX_NOT_CONFIGURED", "project_id and location are required for the google classifier")
	}

	opts := []option.ClientOption{}
	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.Model)
	m.model.SetTemperature(0.1)
	return nil
}

// Classify sends the photo to Gemini and parses the diagnosis
func (m *GoogleClassifier) Classify(ctx context.Context, imageData []byte) (*models.Diagnosis, error) {
	if m.model == nil {
		return nil, apperrors.ErrClassificationFailed.WithContext("reason", "model not loaded")
	}
	if len(imageData) == 0 {
		return nil, apperrors.ErrInvalidImage
	}

	img := genai.ImageData(imageFormat(imageData), imageData)
	resp, err := m.model.GenerateContent(ctx, genai.Text(diagnosisPrompt), img)
	if err != nil {
		return nil, apperrors.ErrClassificationFailed.Wrap(fmt.Errorf("failed to call ai: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return nil, apperrors.ErrClassificationFailed.WithContext("reason", "no response generated")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, apperrors.ErrClassificationFailed.WithContext("reason", "no content in response")
	}

	text, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return nil, apperrors.ErrClassificationFailed.WithContext("reason", "unexpected response format")
	}
	return parseDiagnosis(string(text))
}

// Close closes the Vertex AI client
func (m *GoogleClassifier) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}
