package isolate

// IsolatedSection is the plain-text legal content of one candidate page,
// line-normalised: whitespace runs collapsed, at most one blank line
// between logical blocks. Downstream patterns are line-sensitive, so the
// line structure is part of the contract.
type IsolatedSection struct {
	lines []string
}

func NewIsolatedSection(lines []string) IsolatedSection {
	return IsolatedSection{lines: lines}
}

func (s IsolatedSection) Lines() []string {
	return append([]string(nil), s.lines...)
}

func (s IsolatedSection) Empty() bool {
	return len(s.lines) == 0
}
