package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSkip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		page     int
		size     int
		deleted  int
		expected int
	}{
		{"first page", 1, 5, 0, 0},
		{"second page no deletions", 2, 5, 0, 5},
		{"second page after two deletions", 2, 5, 2, 3},
		{"deletions exceed offset", 2, 5, 7, 0},
		{"zero page treated as first", 0, 5, 0, 0},
		{"negative page treated as first", -3, 10, 0, 0},
		{"notification page size", 3, 10, 1, 19},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ResolveSkip(tt.page, tt.size, tt.deleted))
		})
	}
}

// Twelve items, page size 5. After loading page 1 the viewer deletes two of them;
// page 2 must start at the item originally in position 8, not position 10.
func TestDeletionCompensationNeitherSkipsNorDuplicates(t *testing.T) {
	t.Parallel()

	store := make([]int, 12)
	for i := range store {
		store[i] = i + 1
	}
	fetch := func(skip, limit int) []int {
		if skip >= len(store) {
			return nil
		}
		end := skip + limit
		if end > len(store) {
			end = len(store)
		}
		return append([]int(nil), store[skip:end]...)
	}
	remove := func(v int) {
		for i, x := range store {
			if x == v {
				store = append(store[:i], store[i+1:]...)
				return
			}
		}
	}

	var state State[int]
	state.Reset("all")
	page := state.Merge(fetch(state.Skip(1, 5), 5), 1, len(store))
	require.Equal(t, []int{1, 2, 3, 4, 5}, page.Results)

	for _, v := range []int{2, 4} {
		remove(v)
		for i, x := range page.Results {
			if x == v {
				page.Results = append(page.Results[:i], page.Results[i+1:]...)
				break
			}
		}
		page.RecordDeletion()
		page.TotalDocs--
	}

	skip := state.Skip(2, 5)
	assert.Equal(t, 3, skip)
	page = state.Merge(fetch(skip, 5), 2, len(store))
	assert.Equal(t, []int{1, 3, 5, 6, 7, 8, 9, 10}, page.Results)
	assert.Equal(t, 2, page.DeletedDocCount)
	assert.True(t, page.HasMore())

	page = state.Merge(fetch(state.Skip(3, 5), 5), 3, len(store))
	assert.Equal(t, []int{1, 3, 5, 6, 7, 8, 9, 10, 11, 12}, page.Results)
	assert.False(t, page.HasMore())
}

func TestMergePage(t *testing.T) {
	t.Parallel()

	p := MergePage[string](nil, []string{"a", "b"}, 1)
	assert.Equal(t, []string{"a", "b"}, p.Results)
	assert.Equal(t, 1, p.Page)

	p = MergePage(p, []string{"c"}, 2)
	assert.Equal(t, []string{"a", "b", "c"}, p.Results)
	assert.Equal(t, 2, p.Page)

	p = MergePage(p, []string{"z"}, 1)
	assert.Equal(t, []string{"z"}, p.Results, "page 1 replaces accumulated results")
}

func TestPageHasMore(t *testing.T) {
	t.Parallel()

	var nilPage *Page[int]
	assert.False(t, nilPage.HasMore())
	assert.True(t, (&Page[int]{Results: []int{1}, TotalDocs: 2}).HasMore())
	assert.False(t, (&Page[int]{Results: []int{1, 2}, TotalDocs: 2}).HasMore())
}

func TestStateResetOnFilterChange(t *testing.T) {
	t.Parallel()

	var s State[int]
	assert.True(t, s.Reset("all"))
	s.Merge([]int{1, 2}, 1, 4)
	s.Page.RecordDeletion()
	assert.False(t, s.Reset("all"), "same filter keeps state")
	assert.Equal(t, 1, s.Page.DeletedDocCount)

	assert.True(t, s.Reset("like"))
	assert.Empty(t, s.Page.Results)
	assert.Zero(t, s.Page.DeletedDocCount)
	assert.Equal(t, 10, s.Skip(2, 10), "no deletions after reset")
}
