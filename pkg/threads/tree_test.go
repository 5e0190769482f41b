package threads

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/models"
)

func comment(id, parentID string, level int, at time.Time) models.Comment {
	return models.Comment{
		ID:              id,
		WorkspaceID:     "ws-1",
		EntityType:      models.EntityTask,
		EntityID:        "task-1",
		AuthorID:        "user-1",
		Content:         "content " + id,
		ParentCommentID: parentID,
		ThreadLevel:     level,
		CreatedAt:       at,
	}
}

func TestBuildSimpleThread(t *testing.T) {
	base := time.Now()
	flat := []models.Comment{
		comment("c1", "", 0, base),
		comment("c2", "c1", 1, base.Add(time.Minute)),
		comment("c3", "c1", 1, base.Add(2*time.Minute)),
		comment("c4", "c2", 2, base.Add(3*time.Minute)),
		comment("c5", "", 0, base.Add(4*time.Minute)),
	}

	roots := Build(flat)
	require.Len(t, roots, 2)
	assert.Equal(t, "c1", roots[0].Comment.ID)
	assert.Equal(t, "c5", roots[1].Comment.ID)

	require.Len(t, roots[0].Replies, 2)
	assert.Equal(t, "c2", roots[0].Replies[0].Comment.ID)
	assert.Equal(t, "c3", roots[0].Replies[1].Comment.ID)
	require.Len(t, roots[0].Replies[0].Replies, 1)
	assert.Equal(t, "c4", roots[0].Replies[0].Replies[0].Comment.ID)

	assert.Equal(t, len(flat), Count(roots))
}

func TestBuildEveryCommentAppearsExactlyOnce(t *testing.T) {
	// Chain of 50 replies plus a handful of independent roots.
	base := time.Now()
	var flat []models.Comment
	parent := ""
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("chain-%d", i)
		flat = append(flat, comment(id, parent, i, base.Add(time.Duration(i)*time.Second)))
		parent = id
	}
	for i := 0; i < 5; i++ {
		flat = append(flat, comment(fmt.Sprintf("root-%d", i), "", 0, base.Add(time.Hour)))
	}

	roots := Build(flat)
	assert.Equal(t, len(flat), Count(roots))

	seen := map[string]int{}
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			seen[n.Comment.ID]++
			walk(n.Replies)
		}
	}
	walk(roots)

	for _, c := range flat {
		assert.Equal(t, 1, seen[c.ID], "comment %s should appear exactly once", c.ID)
	}
}

func TestBuildAncestorChainMatchesParentIDs(t *testing.T) {
	base := time.Now()
	flat := []models.Comment{
		comment("a", "", 0, base),
		comment("b", "a", 1, base.Add(time.Second)),
		comment("c", "b", 2, base.Add(2*time.Second)),
		comment("d", "c", 3, base.Add(3*time.Second)),
	}

	roots := Build(flat)
	require.Len(t, roots, 1)

	// Walk down the tree collecting parent links.
	node := roots[0]
	for _, want := range []string{"b", "c", "d"} {
		require.Len(t, node.Replies, 1)
		child := node.Replies[0]
		assert.Equal(t, want, child.Comment.ID)
		assert.Equal(t, node.Comment.ID, child.Comment.ParentCommentID)
		node = child
	}
}

func TestBuildOrphansPromotedToRoots(t *testing.T) {
	base := time.Now()
	flat := []models.Comment{
		comment("root", "", 0, base),
		comment("orphan", "gone", 1, base.Add(time.Second)),
		comment("child-of-orphan", "orphan", 2, base.Add(2*time.Second)),
	}

	roots := Build(flat)
	require.Len(t, roots, 2)
	assert.Equal(t, "root", roots[0].Comment.ID)
	assert.Equal(t, "orphan", roots[1].Comment.ID)
	require.Len(t, roots[1].Replies, 1)
	assert.Equal(t, "child-of-orphan", roots[1].Replies[0].Comment.ID)
	assert.Equal(t, len(flat), Count(roots))
}

func TestBuildSelfReferenceDoesNotLoop(t *testing.T) {
	flat := []models.Comment{
		comment("loop", "loop", 1, time.Now()),
	}
	roots := Build(flat)
	require.Len(t, roots, 1)
	assert.Empty(t, roots[0].Replies)
}

func TestReplyLevelCap(t *testing.T) {
	assert.Equal(t, 0, ReplyLevel(nil))

	parent := &models.Comment{ThreadLevel: 0}
	assert.Equal(t, 1, ReplyLevel(parent))

	// No matter how deep the chain goes, stored depth stops at the cap.
	deep := &models.Comment{ThreadLevel: models.MaxThreadLevel}
	assert.Equal(t, models.MaxThreadLevel, ReplyLevel(deep))

	deeper := &models.Comment{ThreadLevel: models.MaxThreadLevel + 3}
	assert.Equal(t, models.MaxThreadLevel, ReplyLevel(deeper))
}
