package model

// FixedModeKey identifies the fixed-window operating mode. Fixed mode is
// universally compatible: it accepts every time system and never drives
// bounds from a tick source.
const FixedModeKey = "fixed"

// Mode identifies an operating regime for the time conductor, e.g. a fixed
// window or a live/streaming mode driven by a tick source. A Mode is
// immutable for the lifetime of the controller built from it.
type Mode struct {
	Key  string
	Name string
}

// IsFixed reports whether this is the distinguished fixed-window mode.
func (m Mode) IsFixed() bool {
	return m.Key == FixedModeKey
}
