package runtime

import "github.com/aretw0/detailtree/pkg/domain"

// DefaultLazyThreshold is the sequence length from which elements are shown as
// placeholders instead of being built.
const DefaultLazyThreshold = 15

// Pager decides whether the elements of a sequence are built immediately or shown
// as dummy rows materialized on demand.
type Pager struct {
	threshold int
	touched   [][]domain.EntityID
}

// NewPager creates a pager. A threshold <= 0 disables paging. Touched holds the
// entity-id paths of objects that must be real now (being created, deleted or
// focused).
func NewPager(threshold int, touched [][]domain.EntityID) *Pager {
	return &Pager{threshold: threshold, touched: touched}
}

// Lazy reports whether a sequence of count elements is paged.
func (p *Pager) Lazy(count int) bool {
	return p.threshold > 0 && count >= p.threshold
}

// MustBeReal reports whether the element at idPath, or an object below it, is on the
// touched list.
func (p *Pager) MustBeReal(idPath []domain.EntityID) bool {
	for _, t := range p.touched {
		if hasIDPrefix(t, idPath) {
			return true
		}
	}
	return false
}

func hasIDPrefix(path, prefix []domain.EntityID) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}
