package kgain

import (
	"encoding"
	"fmt"
	"math"
)

// Version identifies a model generation. It is determined by the length of
// the parameter vector.
type Version int

const (
	V4 Version = iota + 4 // 17 parameters, fixed decay -0.5, no same-day reviews.
	V5                    // 19 parameters, fixed decay -0.5, same-day reviews.
	V6                    // 21 parameters, trainable decay w[20].
)

// Parameter vector lengths per version.
const (
	LenV4 = 17
	LenV5 = 19
	LenV6 = 21
)

// FixedDecay is the forgetting-curve exponent of V4 and V5.
const FixedDecay = -0.5

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Version(0)
	_ encoding.TextMarshaler   = Version(0)
	_ encoding.TextUnmarshaler = (*Version)(nil)
)

func (v Version) isValid() bool {
	return v >= V4 && v <= V6
}

// String returns "V4", "V5" or "V6". For invalid values it returns "Version(n)".
func (v Version) String() string {
	if v.isValid() {
		return fmt.Sprintf("V%d", int(v))
	}
	return fmt.Sprintf("Version(%d)", int(v))
}

// Len returns the parameter vector length of the version, or 0 if invalid.
func (v Version) Len() int {
	switch v {
	case V4:
		return LenV4
	case V5:
		return LenV5
	case V6:
		return LenV6
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	if !v.isValid() {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	switch string(text) {
	case "V4":
		*v = V4
	case "V5":
		*v = V5
	case "V6":
		*v = V6
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, text)
	}
	return nil
}

// VersionOf returns the version implied by a parameter vector length.
func VersionOf(n int) (Version, error) {
	switch n {
	case LenV4:
		return V4, nil
	case LenV5:
		return V5, nil
	case LenV6:
		return V6, nil
	default:
		return 0, fmt.Errorf("%w: %d parameters, want %d, %d or %d",
			ErrInvalidParameters, n, LenV4, LenV5, LenV6)
	}
}

// DefaultParameters are the FSRS v6 default parameter values.
var DefaultParameters = [LenV6]float64{
	0.212, 1.2931, 2.3065, 8.2956, // w[0..3]  initial stability S₀(G)
	6.4133, 0.8334, 3.0194, 0.001, // w[4..7]  difficulty params
	1.8722, 0.1666, 0.796, 1.4835, // w[8..11] recall stability params
	0.0614, 0.2629, 1.6483, 0.6014, // w[12..15] forget stability params
	1.8729, 0.5425, 0.0912, 0.0658, // w[16..19] easy/short-term params
	0.1542, // w[20] decay exponent
}

// ReferenceParametersV4 is a published 17-parameter vector, used as a
// regression fixture.
var ReferenceParametersV4 = [LenV4]float64{
	1.0191, 8.2268, 17.8704, 100.0000,
	6.6634, 0.7805, 2.2023, 0.0241,
	1.9304, 0.0000, 1.3965, 1.7472,
	0.1247, 0.1160, 2.2431, 0.4258,
	3.1303,
}

// LowerBounds defines the minimum allowed value for each V6 parameter.
var LowerBounds = [LenV6]float64{
	0.001, 0.001, 0.001, 0.001,
	1.0, 0.001, 0.001, 0.001,
	0.0, 0.0, 0.001, 0.001,
	0.001, 0.001, 0.0, 0.0,
	1.0, 0.0, 0.0, 0.0,
	0.1,
}

// UpperBounds defines the maximum allowed value for each V6 parameter.
var UpperBounds = [LenV6]float64{
	100.0, 100.0, 100.0, 100.0,
	10.0, 4.0, 4.0, 0.75,
	4.5, 0.8, 3.5, 5.0,
	0.25, 0.9, 4.0, 1.0,
	6.0, 2.0, 2.0, 0.8,
	0.8,
}

// ValidateBounds checks a parameter vector of any supported length against
// [LowerBounds, UpperBounds]. Shorter vectors are checked on their prefix.
func ValidateBounds(w []float64) error {
	if _, err := VersionOf(len(w)); err != nil {
		return err
	}
	for i, v := range w {
		if v < LowerBounds[i] || v > UpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidParameters, i, v, LowerBounds[i], UpperBounds[i])
		}
	}
	return nil
}

// pad widens a V4 or V5 vector to the V6 layout. Missing same-day weights
// are zero and w[20] is the negated fixed decay, so the V6 formulas
// reproduce V5. V4 also needs its own difficulty rules; see newLegacyAlgo.
func pad(w []float64) [LenV6]float64 {
	var p [LenV6]float64
	copy(p[:], w)
	if len(w) < LenV6 {
		p[20] = -FixedDecay
	}
	return p
}

func checkFinite(w []float64) error {
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: w[%d] is not finite", ErrInvalidParameters, i)
		}
	}
	return nil
}
