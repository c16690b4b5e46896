package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKnownLabel(t *testing.T) {
	entry := Default().Resolve("Powdery Mildew")

	assert.Equal(t, []string{
		"Apply sulfur-based fungicide",
		"Increase sunlight exposure",
		"Reduce humidity levels",
		"Remove infected plant parts",
	}, entry.Treatments)
	assert.Len(t, entry.Tips, 3)
	assert.Equal(t, "Immediate: Apply fungicide treatment", entry.Schedule[0])
}

func TestResolveUnknownLabel(t *testing.T) {
	c := Default()

	entry := c.Resolve("Some Unknown Disease")
	earlyBlight, ok := c.Lookup("Early Blight")
	require.True(t, ok)

	assert.NotEqual(t, earlyBlight, entry)
	assert.Equal(t, unknownEntry, entry)
}

func TestLookup(t *testing.T) {
	c := Default()

	tests := []struct {
		label string
		found bool
	}{
		{"Early Blight", true},
		{"Leaf Spot Disease", true},
		{"Powdery Mildew", true},
		{"Rust Disease", true},
		{"rust disease", false},
		{"", false},
		{UnknownDisease, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			entry, found := c.Lookup(tt.label)
			assert.Equal(t, tt.found, found)
			if !found {
				assert.Empty(t, entry.Treatments)
			}
		})
	}
}

func TestEntriesAreCopies(t *testing.T) {
	c := Default()

	entry := c.Resolve("Rust Disease")
	entry.Schedule[0] = "mutated"

	assert.Equal(t, "Immediate: Remove all infected leaves", c.Resolve("Rust Disease").Schedule[0])
}

func TestLabels(t *testing.T) {
	assert.Equal(t,
		[]string{"Early Blight", "Leaf Spot Disease", "Powdery Mildew", "Rust Disease"},
		Default().Labels())
}
