// Package threads rebuilds comment trees from the flat rows the store
// returns. Depth is a stored counter, capped, so replies below the cap
// attach to their real parent but render at the cap level.
package threads

import (
	"sort"

	"taskboard-backend/pkg/models"
)

// Node is a comment with its direct replies.
type Node struct {
	Comment models.Comment `json:"comment"`
	Replies []*Node        `json:"replies"`
}

// ReplyLevel computes the stored thread level for a reply to parent.
// Top-level comments sit at level 0; depth never exceeds
// models.MaxThreadLevel no matter how deep the reply chain goes.
func ReplyLevel(parent *models.Comment) int {
	if parent == nil {
		return 0
	}
	level := parent.ThreadLevel + 1
	if level > models.MaxThreadLevel {
		level = models.MaxThreadLevel
	}
	return level
}

// Build assembles a forest from a flat comment list in a single pass
// over an id-indexed arena. Comments whose parent id is unknown (the
// parent was hard-deleted or lives outside the fetched page) are
// promoted to roots rather than dropped, so every input comment appears
// exactly once in the output. Siblings keep creation order.
func Build(comments []models.Comment) []*Node {
	arena := make(map[string]*Node, len(comments))
	for i := range comments {
		arena[comments[i].ID] = &Node{Comment: comments[i]}
	}

	var roots []*Node
	for i := range comments {
		node := arena[comments[i].ID]
		parentID := comments[i].ParentCommentID
		if parentID == "" {
			roots = append(roots, node)
			continue
		}
		parent, ok := arena[parentID]
		if !ok || parentID == comments[i].ID {
			roots = append(roots, node)
			continue
		}
		parent.Replies = append(parent.Replies, node)
	}

	sortByCreation(roots)
	for _, n := range arena {
		sortByCreation(n.Replies)
	}
	return roots
}

func sortByCreation(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Comment.CreatedAt.Before(nodes[j].Comment.CreatedAt)
	})
}

// Count returns the number of comments in the forest.
func Count(roots []*Node) int {
	total := 0
	for _, r := range roots {
		total += 1 + Count(r.Replies)
	}
	return total
}
