package ratelimit

import "time"

// Preset names a rate-limit policy. The limiter itself is preset-agnostic;
// presets are a convenience for callers wiring middleware.
type Preset struct {
	Name        string
	MaxRequests int
	Window      time.Duration
}

// Built-in presets.
var (
	// PresetStrict is for endpoints that mutate sensitive state.
	PresetStrict = Preset{Name: "strict", MaxRequests: 30, Window: 10 * time.Minute}

	// PresetAuth protects login and token endpoints against brute force.
	PresetAuth = Preset{Name: "auth", MaxRequests: 10, Window: 5 * time.Minute}

	// PresetGeneral is the default for ordinary API traffic.
	PresetGeneral = Preset{Name: "general", MaxRequests: 100, Window: 15 * time.Minute}
)

// LookupPreset returns the named built-in preset.
// Unknown names fall back to the general preset.
func LookupPreset(name string) Preset {
	switch name {
	case "strict":
		return PresetStrict
	case "auth":
		return PresetAuth
	case "general":
		return PresetGeneral
	default:
		return PresetGeneral
	}
}
