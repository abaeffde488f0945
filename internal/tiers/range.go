package tiers

import (
	"errors"
	"fmt"
)

// Range labels a bulk-purchase quantity band.
type Range string

const (
	Range1To5   Range = "1-5"
	Range5To10  Range = "5-10"
	Range10To20 Range = "10-20"
)

var (
	// ErrInvalidTierRange is returned for labels outside the enumerated set.
	ErrInvalidTierRange = errors.New("invalid tier range")
	// ErrQuantityOutOfRange is returned when no band covers an order quantity.
	ErrQuantityOutOfRange = errors.New("quantity outside tier ranges")
)

var ordered = [tierCount]Range{Range1To5, Range5To10, Range10To20}

const tierCount = 3

// Ranges returns the enumerated labels in display order.
func Ranges() []Range {
	out := make([]Range, tierCount)
	copy(out, ordered[:])
	return out
}

// ParseRange validates s against the enumerated labels. The match is exact;
// callers trim user input before parsing.
func ParseRange(s string) (Range, error) {
	r := Range(s)
	if r.index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTierRange, s)
	}
	return r, nil
}

// Valid reports whether r is one of the enumerated labels.
func (r Range) Valid() bool {
	return r.index() >= 0
}

func (r Range) String() string {
	return string(r)
}

// Bounds returns the quantities named by the label.
func (r Range) Bounds() (lo, hi int) {
	switch r {
	case Range1To5:
		return 1, 5
	case Range5To10:
		return 5, 10
	case Range10To20:
		return 10, 20
	default:
		return 0, 0
	}
}

// ForQuantity maps an order quantity onto its band. Labels share their
// boundary quantity, which belongs to the higher band: 5 is "5-10" and 10 is
// "10-20". Quantities above 20 stay in the top band.
func ForQuantity(qty int) (Range, error) {
	if qty < 1 {
		return "", fmt.Errorf("%w: %d", ErrQuantityOutOfRange, qty)
	}
	for i := len(ordered) - 1; i >= 0; i-- {
		lo, _ := ordered[i].Bounds()
		if qty >= lo {
			return ordered[i], nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrQuantityOutOfRange, qty)
}

func (r Range) index() int {
	for i, candidate := range ordered {
		if candidate == r {
			return i
		}
	}
	return -1
}
