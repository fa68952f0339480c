package classify

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/signald/internal/signal"
)

var (
	userMentionRe   = regexp.MustCompile(`<@([A-Za-z0-9]+)(?:\|([^>]*))?>`)
	channelRefRe    = regexp.MustCompile(`<#[A-Za-z0-9]+\|([^>]*)>`)
	bareChannelRe   = regexp.MustCompile(`<#([A-Za-z0-9]+)>`)
	specialRe       = regexp.MustCompile(`<!(here|channel|everyone)(?:\|[^>]*)?>`)
	labeledLinkRe   = regexp.MustCompile(`<(?:https?|mailto):[^|>]*\|([^>]*)>`)
	bareLinkRe      = regexp.MustCompile(`<(?:https?|mailto):[^>]*>`)
	whitespaceRunRe = regexp.MustCompile(`\s+`)

	htmlUnescaper = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">")
	quoteFolder   = strings.NewReplacer("’", "'", "‘", "'")
)

// StripMarkup removes Slack message markup. User mentions become "@label"
// (or "@U123" without a label), broadcasts become "@here", channel
// references become "#name", labeled links become their label, bare links
// are dropped, and HTML entities are unescaped. Runs of whitespace collapse
// to one space.
func StripMarkup(text string) string {
	out := userMentionRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := userMentionRe.FindStringSubmatch(m)
		if label := strings.TrimSpace(sub[2]); label != "" {
			return "@" + strings.TrimPrefix(label, "@")
		}
		return "@" + sub[1]
	})
	out = channelRefRe.ReplaceAllString(out, "#$1")
	out = bareChannelRe.ReplaceAllString(out, "#$1")
	out = specialRe.ReplaceAllString(out, "@$1")
	out = labeledLinkRe.ReplaceAllString(out, "$1")
	out = bareLinkRe.ReplaceAllString(out, "")
	out = htmlUnescaper.Replace(out)
	out = whitespaceRunRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// FirstSentence returns text up to and including the first sentence
// terminator. A newline also ends the sentence.
func FirstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// "v1.2" and "e.g" are not sentence ends.
		if i+1 < len(runes) && runes[i+1] != ' ' {
			continue
		}
		return strings.TrimSpace(string(runes[:i+1]))
	}
	return strings.TrimSpace(text)
}

// ExtractTitle builds a display title from raw chat text: markup stripped,
// first sentence, at most max runes.
func ExtractTitle(text string, max int) string {
	title := FirstSentence(StripMarkup(text))
	if title == "" {
		title = "(no text)"
	}
	return signal.Truncate(title, max)
}

// wordMatcher compiles a case-insensitive matcher that accepts any of words
// on word boundaries. Entries may contain spaces.
func wordMatcher(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// containsAny reports whether lower contains one of the phrases. Callers pass
// lowercased text.
func containsAny(lower string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// normalizeQuotes folds typographic apostrophes so "I’ll" matches "i'll".
func normalizeQuotes(s string) string {
	return quoteFolder.Replace(s)
}
