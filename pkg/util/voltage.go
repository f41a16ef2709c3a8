// Package util holds small formatting helpers shared by callers that
// want to print solver state without pulling in a logging dependency
// (§9 "Observer" is numeric-only by design).
//
// Adapted from toy-spice's pkg/util/formatter.go: FormatMagnitudePhase
// there renders an AC small-signal phasor (name=value<phasedeg) for
// console output; BusVoltage below keeps the same magnitude/phase
// rendering but drops the circuit-specific engineering-unit scaling
// (FormatValueFactor/FormatFrequency) that has no analog for a
// per-unit power-flow voltage, and takes an angle in radians (as
// produced throughout this module) rather than already-degrees.
package util

import (
	"fmt"
	"math"
)

// BusVoltage formats a per-unit complex bus voltage as
// "bus3=    1.02<  -2.3deg" (magnitude padded to 8 columns, angle in
// degrees padded to 6), matching toy-spice's phasor print style.
func BusVoltage(bus int, vm, vaRad float64) string {
	return magnitudePhase(fmt.Sprintf("bus%d", bus), vm, vaRad*180/math.Pi)
}

func magnitudePhase(name string, value, phaseDeg float64) string {
	var magStr string
	switch {
	case value >= 1000, value != 0 && value < 0.001:
		magStr = fmt.Sprintf("%8.2e", value)
	default:
		magStr = fmt.Sprintf("%8.3g", value)
	}
	return fmt.Sprintf("%s=%s<%6.1fdeg", name, magStr, phaseDeg)
}
