package ml

import (
	"context"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/franckalain/cropguard/internal/apperrors"
	"github.com/franckalain/cropguard/internal/models"
)

// simulatedDiagnoses are the results the local classifier draws from
var simulatedDiagnoses = []models.Diagnosis{
	{Name: "Early Blight", Confidence: "87%", Severity: models.SeverityModerate},
	{Name: "Leaf Spot Disease", Confidence: "92%", Severity: models.SeverityLow},
	{Name: "Powdery Mildew", Confidence: "78%", Severity: models.SeverityHigh},
	{Name: "Rust Disease", Confidence: "85%", Severity: models.SeverityModerate},
}

// LocalConfig holds configuration for the simulated classifier
type LocalConfig struct {
	BaseConfig
	// Seed fixes the random sequence; 0 seeds from the clock
	Seed int64 `json:"seed"`
	// Fixed, when set, is always returned instead of a random pick
	Fixed string `json:"fixed"`
}

// Load loads the local configuration
func (c *LocalConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "local", c); err != nil {
		return err
	}

	if c.Seed == 0 {
		if v := os.Getenv("LOCAL_CLASSIFIER_SEED"); v != "" {
			seed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return apperrors.New(apperrors.ErrTypeConfig, "INVALID_SEED", "LOCAL_CLASSIFIER_SEED is not an integer").Wrap(err)
			}
			c.Seed = seed
		}
	}
	if c.Fixed == "" {
		c.Fixed = os.Getenv("LOCAL_CLASSIFIER_FIXED")
	}
	return nil
}

// LocalClassifier returns simulated diagnoses without running a model
type LocalClassifier struct {
	config LocalConfig
	mu     sync.Mutex
	rng    *rand.Rand
}

// LocalClassifierFactory implements ClassifierFactory for local classifiers
type LocalClassifierFactory struct {
	config LocalConfig
}

// NewLocalClassifierFactory creates a new local classifier factory
func NewLocalClassifierFactory(config LocalConfig) *LocalClassifierFactory {
	return &LocalClassifierFactory{config: config}
}

// CreateClassifier creates a new local classifier instance
func (f *LocalClassifierFactory) CreateClassifier() (Classifier, error) {
	return &LocalClassifier{config: f.config}, nil
}

// Load seeds the random source
func (m *LocalClassifier) Load(ctx context.Context) error {
	seed := m.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m.mu.Lock()
	m.rng = rand.New(rand.NewSource(seed))
	m.mu.Unlock()
	return nil
}

// Classify picks one of the simulated diagnoses
func (m *LocalClassifier) Classify(ctx context.Context, imageData []byte) (*models.Diagnosis, error) {
	if len(imageData) == 0 {
		return nil, apperrors.ErrInvalidImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.config.Fixed != "" {
		for _, d := range simulatedDiagnoses {
			if d.Name == m.config.Fixed {
				return &d, nil
			}
		}
		return &models.Diagnosis{Name: m.config.Fixed}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rng == nil {
		return nil, apperrors.ErrClassificationFailed.WithContext("reason", "classifier not loaded")
	}
	d := simulatedDiagnoses[m.rng.Intn(len(simulatedDiagnoses))]
	return &d, nil
}

// Close is a no-op
func (m *LocalClassifier) Close() error {
	return nil
}
