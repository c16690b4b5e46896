package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/cropguard/internal/projector"
)

func TestRenderHTML(t *testing.T) {
	v := projector.View{
		Disease:         "Rust Disease",
		ConfidenceLabel: "85% Confidence",
		Severity:        "Moderate",
		Date:            "Mar 1, 2026, 8:00:00 AM",
		Treatments:      []string{"Remove infected leaves immediately"},
		Tips:            []string{"Choose resistant varieties"},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, v, time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)))
	out := buf.String()

	assert.Contains(t, out, "<h3>Disease: Rust Disease</h3>")
	assert.Contains(t, out, "85% Confidence")
	assert.Contains(t, out, "<li>• Remove infected leaves immediately</li>")
	assert.Contains(t, out, "<li>• Choose resistant varieties</li>")
	assert.Contains(t, out, "<li>No schedule available</li>")
	assert.NotContains(t, out, "No tips available")
	assert.Contains(t, out, "Report generated on: Mar 2, 2026, 2:30:00 PM")
}

func TestRenderHTMLEmptyView(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, projector.View{}, time.Now()))
	out := buf.String()

	assert.Contains(t, out, "Disease: N/A")
	assert.Contains(t, out, "No treatment information available")
	assert.Contains(t, out, "No tips available")
	assert.Equal(t, 1, strings.Count(out, "No schedule available"))
}

func TestRenderHTMLEscapes(t *testing.T) {
	var buf bytes.Buffer
	v := projector.View{Disease: `<script>alert(1)</script>`}
	require.NoError(t, RenderHTML(&buf, v, time.Now()))

	assert.NotContains(t, buf.String(), "<script>alert(1)</script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestShareText(t *testing.T) {
	assert.Equal(t,
		"🌱 CropGuard AI Treatment Report\n\nDisease: Powdery Mildew\n\nGet detailed treatment recommendations and care tips with CropGuard AI!",
		ShareText(projector.View{Disease: "Powdery Mildew"}))
	assert.Contains(t, ShareText(projector.View{}), "Disease: Plant Disease")
}
