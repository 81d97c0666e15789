// Package pagination implements page-number listing with compensation for items
// deleted by the viewer while paging.
//
// A client that removes an item it has already loaded shifts every later item one
// slot toward the front. Fetching page n with a plain (n-1)*size offset would then
// skip those items, so the offset is reduced by the number of deletions recorded
// since the listing was last reset.
package pagination

// Default page sizes per listing.
const (
	FeedPageSize         = 5
	AuthoredPageSize     = 5
	NotificationPageSize = 10
	CommentPageSize      = 5
)

// ResolveSkip returns the row offset for page given pageSize and the number of
// already-loaded items deleted since the first page. Pages below 1 are treated as 1.
func ResolveSkip(page, pageSize, deletedDocCount int) int {
	if page < 1 {
		page = 1
	}
	skip := (page-1)*pageSize - deletedDocCount
	if skip < 0 {
		return 0
	}
	return skip
}

// Page is the accumulated client-side view of a listing.
type Page[T any] struct {
	Results         []T `json:"results"`
	Page            int `json:"page"`
	TotalDocs       int `json:"total_docs"`
	DeletedDocCount int `json:"deleted_doc_count"`
}

// HasMore reports whether TotalDocs exceeds the number of loaded results.
func (p *Page[T]) HasMore() bool {
	return p != nil && p.TotalDocs > len(p.Results)
}

// RecordDeletion accounts for an item removed from Results by the viewer.
func (p *Page[T]) RecordDeletion() {
	p.DeletedDocCount++
}

// MergePage folds a freshly fetched batch into existing. Page 1 (or no existing
// state) replaces the accumulated results; later pages append.
func MergePage[T any](existing *Page[T], results []T, page int) *Page[T] {
	if existing == nil || page <= 1 {
		return &Page[T]{
			Results: append([]T(nil), results...),
			Page:    1,
		}
	}

	existing.Results = append(existing.Results, results...)
	existing.Page = page
	return existing
}

// State tracks a listing keyed by its filter criteria. Changing the criteria
// discards accumulated results and zeroes the deletion counter.
type State[T any] struct {
	Filter string
	Page   *Page[T]
}

// Reset switches the listing to filter. It reports whether anything was cleared.
func (s *State[T]) Reset(filter string) bool {
	if s.Page != nil && s.Filter == filter {
		return false
	}
	s.Filter = filter
	s.Page = &Page[T]{Page: 1}
	return true
}

// Skip returns the offset for page under the state's deletion count.
func (s *State[T]) Skip(page, pageSize int) int {
	deleted := 0
	if s.Page != nil && page > 1 {
		deleted = s.Page.DeletedDocCount
	}
	return ResolveSkip(page, pageSize, deleted)
}

// Merge folds a fetched batch into the state, keeping the deletion counter across
// appended pages.
func (s *State[T]) Merge(results []T, page, totalDocs int) *Page[T] {
	deleted := 0
	if s.Page != nil && page > 1 {
		deleted = s.Page.DeletedDocCount
	}
	s.Page = MergePage(s.Page, results, page)
	s.Page.TotalDocs = totalDocs
	s.Page.DeletedDocCount = deleted
	return s.Page
}
