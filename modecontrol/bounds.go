package modecontrol

import "github.com/signalsfoundry/time-conductor/model"

// BoundsFromDeltas recomputes a window after a delta change. The pivot
// ("raw now") is recovered by stripping the previous forward delta from the
// current end bound, then the next deltas are applied around that pivot.
// Because deltas always apply to the recovered pivot rather than to the
// already-widened bound, repeated delta changes do not drift.
//
// A controller with no deltas set passes a zero previous value.
func BoundsFromDeltas(current model.Bounds, previous, next model.Deltas) model.Bounds {
	pivot := current.End - previous.End
	return model.Bounds{
		Start: pivot - next.Start,
		End:   pivot + next.End,
	}
}
