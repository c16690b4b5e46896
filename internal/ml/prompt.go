package ml

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/franckalain/cropguard/internal/apperrors"
	"github.com/franckalain/cropguard/internal/models"
)

const diagnosisPrompt = `You are a plant pathologist. Identify the crop disease visible in this photo.

Respond with a JSON object only:
{
	"disease": "string, e.g. Early Blight, Leaf Spot Disease, Powdery Mildew, Rust Disease",
	"confidence": "percentage string, e.g. 87%",
	"severity": "one of Low, Moderate, High"
}
If no disease can be identified, set "disease" to an empty string.`

// imageFormat returns the image subtype for the payload, e.g. "png"
func imageFormat(data []byte) string {
	mime := http.DetectContentType(data)
	if sub, ok := strings.CutPrefix(mime, "image/"); ok {
		return sub
	}
	return "jpeg"
}

// parseDiagnosis decodes a model reply, tolerating markdown code fences
func parseDiagnosis(text string) (*models.Diagnosis, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var output struct {
		Disease    string `json:"disease"`
		Confidence string `json:"confidence"`
		Severity   string `json:"severity"`
	}
	if err := json.Unmarshal([]byte(text), &output); err != nil {
		return nil, apperrors.ErrClassificationFailed.Wrap(fmt.Errorf("failed to parse model response: %w while parsing %s", err, text))
	}
	if strings.TrimSpace(output.Disease) == "" {
		return nil, apperrors.ErrClassificationFailed.WithContext("reason", "no disease identified")
	}

	return &models.Diagnosis{
		Name:       strings.TrimSpace(output.Disease),
		Confidence: strings.TrimSpace(output.Confidence),
		Severity:   models.Severity(strings.TrimSpace(output.Severity)),
	}, nil
}
