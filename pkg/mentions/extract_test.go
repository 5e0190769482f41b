package mentions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/models"
)

func member(userID, name string) models.WorkspaceMember {
	return models.WorkspaceMember{
		WorkspaceID: "ws-1",
		UserID:      userID,
		Role:        models.RoleMember,
		DisplayName: name,
	}
}

func TestExtractBasic(t *testing.T) {
	members := []models.WorkspaceMember{
		member("u1", "alice"),
		member("u2", "bob"),
	}

	matched := Extract("hey @alice can you review this?", members)
	require.Len(t, matched, 1)
	assert.Equal(t, "u1", matched[0].UserID)
}

func TestExtractCaseInsensitive(t *testing.T) {
	members := []models.WorkspaceMember{member("u1", "Alice")}

	matched := Extract("ping @ALICE and @alice", members)
	require.Len(t, matched, 1)
	assert.Equal(t, "u1", matched[0].UserID)
}

func TestExtractPrefersLongestName(t *testing.T) {
	members := []models.WorkspaceMember{
		member("u1", "Anna"),
		member("u2", "Anna Maria"),
	}

	matched := Extract("cc @Anna Maria please", members)
	require.Len(t, matched, 1)
	assert.Equal(t, "u2", matched[0].UserID)

	matched = Extract("cc @Anna please", members)
	require.Len(t, matched, 1)
	assert.Equal(t, "u1", matched[0].UserID)
}

func TestExtractDeduplicates(t *testing.T) {
	members := []models.WorkspaceMember{member("u1", "bob")}

	matched := Extract("@bob @bob @bob", members)
	assert.Len(t, matched, 1)
}

func TestExtractNoMatches(t *testing.T) {
	members := []models.WorkspaceMember{member("u1", "alice")}

	assert.Empty(t, Extract("no mentions here", members))
	assert.Empty(t, Extract("@stranger is not a member", members))
	assert.Empty(t, Extract("", members))
	assert.Empty(t, Extract("@alice", nil))
}

func TestRecordsSkipSelfMention(t *testing.T) {
	c := &models.Comment{
		ID:          "c1",
		WorkspaceID: "ws-1",
		EntityType:  models.EntityTask,
		EntityID:    "task-1",
		AuthorID:    "u1",
	}
	matched := []models.WorkspaceMember{
		member("u1", "alice"),
		member("u2", "bob"),
	}

	records := Records(c, matched)
	require.Len(t, records, 1)
	assert.Equal(t, "u2", records[0].MentionedUserID)
	assert.Equal(t, "u1", records[0].MentionerUserID)
	assert.Equal(t, "c1", records[0].CommentID)
	assert.False(t, records[0].IsRead)
}
