package tiers

// Selection tracks which tier is focused in the detail editor. It never
// touches tier data and can be reset at any time.
type Selection struct {
	active Range
}

// Select focuses the tier labelled label.
func (s *Selection) Select(label string) (Range, error) {
	r, err := ParseRange(label)
	if err != nil {
		return s.active, err
	}
	s.active = r
	return r, nil
}

// Active returns the focused range, or "" when nothing is selected.
func (s Selection) Active() Range {
	return s.active
}

// Reset clears the focus.
func (s *Selection) Reset() {
	s.active = ""
}
