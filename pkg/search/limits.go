package search

// Limits bounds the work a single request may ask for
type Limits struct {
	DefaultLimit       int
	MaxLimit           int
	MaxGroups          int
	MaxFiltersPerGroup int
}

// DefaultLimits returns the limits used when none are configured
func DefaultLimits() Limits {
	return Limits{
		DefaultLimit:       20,
		MaxLimit:           100,
		MaxGroups:          5,
		MaxFiltersPerGroup: 10,
	}
}

// clamp returns the effective page size for a requested limit
func (l Limits) clamp(requested int) int {
	if requested <= 0 {
		requested = l.DefaultLimit
	}
	if l.MaxLimit > 0 && requested > l.MaxLimit {
		requested = l.MaxLimit
	}
	return requested
}
