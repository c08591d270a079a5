package comments

import (
	"sort"

	"accord/api/internal/store"
)

// BuildThreads partitions a flat comment collection into threads: each root
// (no ParentID) followed by its direct replies sorted ascending by creation
// time. The outer ordering follows the roots' relative order in the input.
// Replies whose parent is not a root are not attached anywhere.
func BuildThreads(comments []store.Comment) [][]store.Comment {
	roots := make([]store.Comment, 0)
	repliesByParent := make(map[string][]store.Comment)
	for _, comment := range comments {
		if comment.ParentID == nil {
			roots = append(roots, comment)
			continue
		}
		repliesByParent[*comment.ParentID] = append(repliesByParent[*comment.ParentID], comment)
	}

	threads := make([][]store.Comment, 0, len(roots))
	for _, root := range roots {
		replies := repliesByParent[root.ID]
		sort.SliceStable(replies, func(i, j int) bool {
			return replies[i].CreatedAt.Before(replies[j].CreatedAt)
		})
		thread := make([]store.Comment, 0, 1+len(replies))
		thread = append(thread, root)
		thread = append(thread, replies...)
		threads = append(threads, thread)
	}
	return threads
}
