// Package ingest loads raw incident exports, normalises them and feeds them
// through the publish pipeline.
package ingest

import (
	"regexp"
	"strings"

	"github.com/kart-io/fixgenie/internal/model"
)

var (
	// Slack export artefacts: user/channel mentions and emoji shortcodes.
	slackMentionPattern = regexp.MustCompile(`<[@#][A-Z0-9]+(\|[^>]*)?>`)
	emojiCodePattern    = regexp.MustCompile(`:[a-z0-9_+-]+:`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// NormalizeText strips chat-export noise and collapses whitespace so that
// Slack threads and ticket bodies index the same way.
func NormalizeText(s string) string {
	s = slackMentionPattern.ReplaceAllString(s, " ")
	s = emojiCodePattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Normalize canonicalises one incident in place: id uppercased, text fields
// cleaned, tags lowercased and de-duplicated.
func Normalize(inc *model.Incident) {
	inc.ID = model.NormalizeID(inc.ID)
	inc.Title = NormalizeText(inc.Title)
	inc.Description = NormalizeText(inc.Description)
	inc.Resolution = NormalizeText(inc.Resolution)

	seen := make(map[string]struct{}, len(inc.Tags))
	tags := inc.Tags[:0]
	for _, tag := range inc.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	inc.Tags = tags
}
