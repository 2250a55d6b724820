package dtw

// Window defaults.
const (
	DefaultMinWindow        = 4
	DefaultWindowMultiplier = 3
)

// WindowPolicy sizes the reference neighbourhood searched for a live buffer.
type WindowPolicy struct {
	MinWidth   int
	Multiplier int
}

// DefaultWindowPolicy returns width = max(4, 3m).
func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{MinWidth: DefaultMinWindow, Multiplier: DefaultWindowMultiplier}
}

// Width returns the window width for a live buffer of m frames against a
// reference of refLen frames: min(refLen, max(MinWidth, Multiplier*m)).
func (p WindowPolicy) Width(refLen, m int) int {
	minW, mult := p.MinWidth, p.Multiplier
	if minW < 1 {
		minW = DefaultMinWindow
	}
	if mult < 1 {
		mult = DefaultWindowMultiplier
	}
	return min(max(refLen, 0), max(minW, mult*m))
}

// Bounds returns the half-open reference range [start, end) centred on idx.
// idx is clamped into the reference first. A window that would overrun either
// end is shifted back inside rather than shrunk, so end-start always equals
// Width(refLen, m).
func (p WindowPolicy) Bounds(refLen, idx, m int) (start, end int) {
	if refLen <= 0 {
		return 0, 0
	}
	idx = min(max(idx, 0), refLen-1)
	width := p.Width(refLen, m)

	start = idx - width/2
	if start < 0 {
		start = 0
	}
	end = start + width
	if end > refLen {
		end = refLen
		start = end - width
	}
	return start, end
}

// Window is Bounds under the default policy.
func Window(refLen, idx, m int) (start, end int) {
	return DefaultWindowPolicy().Bounds(refLen, idx, m)
}
