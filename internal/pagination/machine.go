// Package pagination tracks the current page of a listing and its boundaries.
package pagination

// State is a copy of the machine's position.
type State struct {
	Page     int `json:"page"`
	Total    int `json:"total"`
	PageSize int `json:"page_size"`
}

// PageCount is ceil(Total / PageSize).
func (s State) PageCount() int {
	if s.PageSize <= 0 || s.Total <= 0 {
		return 0
	}
	return (s.Total + s.PageSize - 1) / s.PageSize
}

// HasNext reports whether a following page exists.
func (s State) HasNext() bool {
	return s.Page < s.PageCount()
}

// HasPrev reports whether a preceding page exists.
func (s State) HasPrev() bool {
	return s.Page > 1
}

// Machine is not safe for concurrent use; its owner serializes access.
type Machine struct {
	state State
}

// New returns a machine on page 1 with no known total.
func New(pageSize int) *Machine {
	if pageSize < 1 {
		pageSize = 1
	}
	return &Machine{state: State{Page: 1, PageSize: pageSize}}
}

// State returns the current position.
func (m *Machine) State() State {
	return m.state
}

// Next advances one page. It is a no-op on the last page and reports whether
// the page changed.
func (m *Machine) Next() bool {
	if !m.state.HasNext() {
		return false
	}
	m.state.Page++
	return true
}

// Prev goes back one page; no-op on page 1.
func (m *Machine) Prev() bool {
	if !m.state.HasPrev() {
		return false
	}
	m.state.Page--
	return true
}

// GoTo jumps to page n if it lies within [1, PageCount].
func (m *Machine) GoTo(n int) bool {
	if n < 1 || n == m.state.Page {
		return false
	}
	if n > m.state.PageCount() {
		return false
	}
	m.state.Page = n
	return true
}

// Reset returns to page 1. Called whenever the query shape changes.
func (m *Machine) Reset() {
	m.state.Page = 1
}

// SetTotal records the total reported by the latest relevant result page.
func (m *Machine) SetTotal(total int) {
	if total < 0 {
		total = 0
	}
	m.state.Total = total
}

// Restore places the machine on a page without bounds checks, for a page
// number whose total is not known yet (a restored session).
func (m *Machine) Restore(page int) {
	if page < 1 {
		page = 1
	}
	m.state.Page = page
}
