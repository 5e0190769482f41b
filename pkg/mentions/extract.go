// Package mentions turns free-text @name tokens into mention records by
// matching them against workspace member display names.
package mentions

import (
	"regexp"
	"sort"
	"strings"

	"taskboard-backend/pkg/models"
)

// @ followed by word characters, optionally continued by single spaces
// between word runs so multi-word display names match.
var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_.-]+(?: [\p{L}\p{N}_.-]+)*)`)

// Extract scans content for @name tokens and resolves them against the
// member list. Matching is case-insensitive and prefers the longest
// display name when one is a prefix of another ("@Anna Maria" resolves
// to Anna Maria, not Anna). Each member is reported at most once no
// matter how often they are mentioned.
func Extract(content string, members []models.WorkspaceMember) []models.WorkspaceMember {
	if content == "" || len(members) == 0 {
		return nil
	}

	// Longest names first so prefix collisions resolve to the longer one.
	byLength := make([]models.WorkspaceMember, len(members))
	copy(byLength, members)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].DisplayName) > len(byLength[j].DisplayName)
	})

	seen := make(map[string]bool)
	var matched []models.WorkspaceMember

	for _, token := range mentionPattern.FindAllStringSubmatch(content, -1) {
		candidate := strings.ToLower(token[1])
		for _, m := range byLength {
			name := strings.ToLower(m.DisplayName)
			if name == "" || seen[m.UserID] {
				continue
			}
			// The regex can capture trailing words past the name, so a
			// name matches when the candidate equals it or continues
			// with a space after it.
			if candidate == name || strings.HasPrefix(candidate, name+" ") {
				seen[m.UserID] = true
				matched = append(matched, m)
				break
			}
		}
	}
	return matched
}

// Records builds unread mention rows for the matched members, skipping
// self-mentions.
func Records(c *models.Comment, matched []models.WorkspaceMember) []models.Mention {
	var out []models.Mention
	for _, m := range matched {
		if m.UserID == c.AuthorID {
			continue
		}
		out = append(out, models.Mention{
			WorkspaceID:     c.WorkspaceID,
			EntityType:      c.EntityType,
			EntityID:        c.EntityID,
			CommentID:       c.ID,
			MentionedUserID: m.UserID,
			MentionerUserID: c.AuthorID,
		})
	}
	return out
}
