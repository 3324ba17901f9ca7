package filter

import (
	"atlas-civico/models"
)

// CategoryFilter tracks the distinct categories present in the issue list and
// the subset the user has selected. On the first transition from no known
// categories to some, every category is selected; categories appearing later
// are deliberately not auto-selected.
type CategoryFilter struct {
	known    []string
	selected map[string]bool
}

func New() *CategoryFilter {
	return &CategoryFilter{selected: make(map[string]bool)}
}

// Update derives the distinct category set from the issue list, in order of
// first appearance, and applies the first-load default selection.
func (f *CategoryFilter) Update(issues []models.Issue) {
	distinct := make([]string, 0)
	seen := make(map[string]bool)
	for _, is := range issues {
		if !seen[is.Category] {
			seen[is.Category] = true
			distinct = append(distinct, is.Category)
		}
	}

	firstLoad := len(f.known) == 0 && len(distinct) > 0
	f.known = distinct

	if firstLoad {
		for _, cat := range distinct {
			f.selected[cat] = true
		}
	}
}

// Categories returns the distinct categories in first-appearance order.
func (f *CategoryFilter) Categories() []string {
	out := make([]string, len(f.known))
	copy(out, f.known)
	return out
}

// Selected returns the selected categories in first-appearance order.
func (f *CategoryFilter) Selected() []string {
	out := make([]string, 0, len(f.selected))
	for _, cat := range f.known {
		if f.selected[cat] {
			out = append(out, cat)
		}
	}
	return out
}

// Toggle flips the selection state of one category.
func (f *CategoryFilter) Toggle(category string) {
	if f.selected[category] {
		delete(f.selected, category)
		return
	}
	f.selected[category] = true
}

// Select marks the given categories as the entire selection.
func (f *CategoryFilter) Select(categories []string) {
	f.selected = make(map[string]bool, len(categories))
	for _, cat := range categories {
		f.selected[cat] = true
	}
}

// Visible reports whether the issue passes the filter. An empty selection
// means "no filter", not "hide all".
func (f *CategoryFilter) Visible(issue models.Issue) bool {
	if len(f.selected) == 0 {
		return true
	}
	return f.selected[issue.Category]
}

// Apply narrows the issue list to the visible subset, preserving order.
func (f *CategoryFilter) Apply(issues []models.Issue) []models.Issue {
	out := make([]models.Issue, 0, len(issues))
	for _, is := range issues {
		if f.Visible(is) {
			out = append(out, is)
		}
	}
	return out
}
