package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	// Berlin Alexanderplatz to Berlin Hauptbahnhof, roughly 4.1 km.
	d := Distance(52.5219, 13.4132, 52.5251, 13.3694)
	assert.InDelta(t, 4100, d, 300)

	// Identical points.
	assert.Zero(t, Distance(48.8566, 2.3522, 48.8566, 2.3522))
}

func TestWithin(t *testing.T) {
	// Two points ~111m apart (0.001 degrees of latitude).
	assert.True(t, Within(40.0, -74.0, 40.001, -74.0, 150))
	assert.False(t, Within(40.0, -74.0, 40.001, -74.0, 100))
}
