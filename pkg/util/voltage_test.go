package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusVoltageFormatsMagnitudeAndDegrees(t *testing.T) {
	s := BusVoltage(3, 1.02, -math.Pi/2)
	require.Contains(t, s, "bus3=")
	require.Contains(t, s, "-90.0deg")
}

func TestBusVoltageUsesScientificNotationForSmallMagnitudes(t *testing.T) {
	s := BusVoltage(0, 0.0001, 0)
	require.Contains(t, s, "e-")
}
