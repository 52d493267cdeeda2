package domain

import (
	"fmt"
	"time"
)

// DateDay is the wire format for dates throughout the engine.
const DateDay = "2006-01-02"

// DateRange is an inclusive day-granular range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses "YYYY-MM-DD" bounds into a validated range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateDay, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start %q", ErrInvalidDateRange, start)
	}
	e, err := time.Parse(DateDay, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end %q", ErrInvalidDateRange, end)
	}
	r := DateRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate checks that the range is not inverted.
func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: end before start", ErrInvalidDateRange)
	}
	return nil
}

// IsZero reports whether the range is unset.
func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Contains reports whether t falls inside the range (inclusive).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Overlaps reports whether the two ranges share at least one day.
func (r DateRange) Overlaps(other DateRange) bool {
	if r.IsZero() || other.IsZero() {
		return false
	}
	return !r.End.Before(other.Start) && !other.End.Before(r.Start)
}

// Covers reports whether r fully contains other.
func (r DateRange) Covers(other DateRange) bool {
	if r.IsZero() || other.IsZero() {
		return false
	}
	return !r.Start.After(other.Start) && !r.End.Before(other.End)
}

// Union extends r to include other.
func (r DateRange) Union(other DateRange) DateRange {
	if r.IsZero() {
		return other
	}
	if other.IsZero() {
		return r
	}
	out := r
	if other.Start.Before(out.Start) {
		out.Start = other.Start
	}
	if other.End.After(out.End) {
		out.End = other.End
	}
	return out
}

func (r DateRange) String() string {
	if r.IsZero() {
		return ""
	}
	return r.Start.Format(DateDay) + " to " + r.End.Format(DateDay)
}

// TenantContext scopes a single request to exactly one tenant. It is created
// by the scope guard, immutable, and threaded through every retrieval call.
// No query may span tenants.
type TenantContext struct {
	tenantID string
	dates    DateRange
}

// NewTenantContext builds a validated tenant context.
func NewTenantContext(tenantID string, dates DateRange) (TenantContext, error) {
	if tenantID == "" {
		return TenantContext{}, fmt.Errorf("%w: empty tenant id", ErrInvalidTenant)
	}
	if err := dates.Validate(); err != nil {
		return TenantContext{}, err
	}
	return TenantContext{tenantID: tenantID, dates: dates}, nil
}

// TenantID returns the tenant this context is scoped to.
func (t TenantContext) TenantID() string { return t.tenantID }

// Dates returns the allowed date range for this request.
func (t TenantContext) Dates() DateRange { return t.dates }

// Valid reports whether the context was produced by the scope guard.
// Retrieval calls fail closed on a zero context.
func (t TenantContext) Valid() bool { return t.tenantID != "" }
