// Package catalog maps disease labels to their fixed treatment guidance.
package catalog

import (
	"sort"

	"github.com/franckalain/cropguard/internal/models"
)

// UnknownDisease is the label of the entry returned when a lookup misses
const UnknownDisease = "Unknown Disease"

var unknownEntry = models.TreatmentData{
	Treatments: []string{
		"No specific treatment guidance is available for this diagnosis",
		"Isolate affected plants until the cause is confirmed",
		"Consult a local agricultural extension officer",
	},
	Tips: []string{
		"Take a clearer photo of the affected leaves and scan again",
		"Record when symptoms first appeared",
	},
	Schedule: []string{
		"Immediate: Isolate affected plants",
		"Day 1-3: Seek expert confirmation",
	},
}

var defaultEntries = map[string]models.TreatmentData{
	"Early Blight": {
		Treatments: []string{
			"Remove and destroy infected leaves",
			"Apply copper-based fungicide",
			"Improve air circulation",
			"Avoid overhead watering",
		},
		Tips: []string{
			"Water at soil level to avoid leaf wetness",
			"Apply mulch to prevent spores from splashing up",
			"Plant resistant varieties if available",
		},
		Schedule: []string{
			"Week 1: Apply initial treatment",
			"Week 2: Monitor progress and reapply if needed",
			"Week 3-4: Continue monitoring and prevention",
		},
	},
	"Leaf Spot Disease": {
		Treatments: []string{
			"Prune affected areas",
			"Apply neem oil solution",
			"Maintain proper spacing",
			"Use disease-resistant varieties",
		},
		Tips: []string{
			"Ensure good drainage in the field",
			"Rotate crops to break disease cycle",
			"Keep weeds under control",
		},
		Schedule: []string{
			"Day 1-3: Remove affected parts immediately",
			"Week 1: Apply treatment and improve conditions",
			"Week 2-3: Monitor and maintain prevention",
		},
	},
	"Powdery Mildew": {
		Treatments: []string{
			"Apply sulfur-based fungicide",
			"Increase sunlight exposure",
			"Reduce humidity levels",
			"Remove infected plant parts",
		},
		Tips: []string{
			"Plant in areas with good air circulation",
			"Avoid overhead watering",
			"Remove plant debris regularly",
		},
		Schedule: []string{
			"Immediate: Apply fungicide treatment",
			"Week 1: Improve air circulation",
			"Week 2-4: Regular monitoring and prevention",
		},
	},
	"Rust Disease": {
		Treatments: []string{
			"Remove infected leaves immediately",
			"Apply fungicide treatment",
			"Improve plant spacing",
			"Avoid wetting foliage",
		},
		Tips: []string{
			"Monitor plants weekly for early detection",
			"Choose resistant varieties",
			"Maintain proper plant nutrition",
		},
		Schedule: []string{
			"Immediate: Remove all infected leaves",
			"Day 3-7: Apply treatment and improve spacing",
			"Week 2-3: Monitor for new infections",
		},
	},
}

// Catalog is a read-only table of treatment guidance keyed by exact label
type Catalog struct {
	entries map[string]models.TreatmentData
	unknown models.TreatmentData
}

// Default returns the built-in four-disease catalog
func Default() *Catalog {
	return New(defaultEntries)
}

// New builds a catalog from entries. The map is copied.
func New(entries map[string]models.TreatmentData) *Catalog {
	c := &Catalog{
		entries: make(map[string]models.TreatmentData, len(entries)),
		unknown: unknownEntry.Clone(),
	}
	for label, entry := range entries {
		c.entries[label] = entry.Clone()
	}
	return c
}

// Lookup returns the entry for label and whether it exists
func (c *Catalog) Lookup(label string) (models.TreatmentData, bool) {
	entry, ok := c.entries[label]
	if !ok {
		return models.TreatmentData{}, false
	}
	return entry.Clone(), true
}

// Resolve returns the entry for label, or the UnknownDisease entry on a miss
func (c *Catalog) Resolve(label string) models.TreatmentData {
	if entry, ok := c.Lookup(label); ok {
		return entry
	}
	return c.unknown.Clone()
}

// Labels returns the known disease labels in sorted order
func (c *Catalog) Labels() []string {
	labels := make([]string, 0, len(c.entries))
	for label := range c.entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
