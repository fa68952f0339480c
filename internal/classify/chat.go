package classify

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/signald/internal/signal"
)

// ChatConfidenceThreshold is the minimum confidence a chat signal needs to
// be surfaced. Only chat adapters apply it.
const ChatConfidenceThreshold = 0.5

// Result is the outcome of a classification.
type Result struct {
	Category   signal.Category
	Confidence float64
	// Rule is the name of the rule that fired.
	Rule string
}

// ChatRule is one row of the chat rule table.
type ChatRule struct {
	Name string
	// Match receives the lowercased, trimmed message with markup intact.
	Match      func(lower string) bool
	Category   signal.Category
	Confidence float64
}

var (
	escalationTokenRe = wordMatcher("p0", "p1")
	dueRe             = wordMatcher("due")
	byWeekdayRe       = regexp.MustCompile(`\bby (?:mon|tues|wednes|thurs|fri|satur|sun)day\b`)
	whWordRe          = wordMatcher("what", "how", "when", "where", "who")
	mentionRe         = regexp.MustCompile(`<@[a-z0-9]+(?:\|[^>]*)?>|<!(?:here|channel|everyone)>|(?:^|\s)@[a-z0-9][a-z0-9._-]*`)
	problemWordRe     = wordMatcher("problem", "issue", "bug", "broken", "error", "failing", "failed", "down", "outage")
	askWordRe         = wordMatcher("please", "pls", "can you", "could you", "need", "help", "review", "check", "take a look")
	updateWordRe      = wordMatcher("update", "status", "progress", "eta")
)

var chatRules = []ChatRule{
	{
		Name:       "blocker",
		Match:      func(s string) bool { return containsAny(s, "blocked", "stuck", "can't proceed", "cannot proceed") },
		Category:   signal.CategoryBlocker,
		Confidence: 0.90,
	},
	{
		Name:       "decision",
		Match:      func(s string) bool { return containsAny(s, "approve", "sign off", "decision needed", "need your input") },
		Category:   signal.CategoryDecision,
		Confidence: 0.85,
	},
	{
		Name: "escalation",
		Match: func(s string) bool {
			return containsAny(s, "urgent", "asap", "immediately", "critical") || escalationTokenRe.MatchString(s)
		},
		Category:   signal.CategoryEscalation,
		Confidence: 0.85,
	},
	{
		Name: "deadline",
		Match: func(s string) bool {
			return containsAny(s, "deadline", "by eod", "by end of") || dueRe.MatchString(s) || byWeekdayRe.MatchString(s)
		},
		Category:   signal.CategoryDeadline,
		Confidence: 0.75,
	},
	{
		Name: "direct_question",
		Match: func(s string) bool {
			return strings.Contains(s, "?") && containsAny(s, "can you", "could you", "would you", "do you know", "any update")
		},
		Category:   signal.CategoryQuestion,
		Confidence: 0.70,
	},
	{
		Name: "mention_request",
		Match: func(s string) bool {
			return mentionRe.MatchString(s) &&
				(problemWordRe.MatchString(s) || askWordRe.MatchString(s) || updateWordRe.MatchString(s))
		},
		Category:   signal.CategoryMention,
		Confidence: 0.75,
	},
	{
		Name:       "mention",
		Match:      mentionRe.MatchString,
		Category:   signal.CategoryMention,
		Confidence: 0.40,
	},
	{
		Name: "commitment",
		Match: func(s string) bool {
			return containsAny(s, "i'll", "i will", "will have", "will get") &&
				containsAny(s, "ready", "done", "finished", "completed")
		},
		Category:   signal.CategoryCommitment,
		Confidence: 0.70,
	},
	{
		Name:       "open_question",
		Match:      func(s string) bool { return strings.Contains(s, "?") && whWordRe.MatchString(s) },
		Category:   signal.CategoryQuestion,
		Confidence: 0.55,
	},
	{
		Name:       "fyi",
		Match:      func(s string) bool { return containsAny(s, "fyi", "heads up", "heads-up", "just letting you know", "update:") },
		Category:   signal.CategoryUpdate,
		Confidence: 0.65,
	},
}

var chatDefault = Result{Category: signal.CategoryUpdate, Confidence: 0.25, Rule: "default"}

// ChatRules returns a copy of the chat rule table in evaluation order.
func ChatRules() []ChatRule {
	out := make([]ChatRule, len(chatRules))
	copy(out, chatRules)
	return out
}

// CategorizeChat runs the rule table against text without the noise gate.
func CategorizeChat(text string) Result {
	lower := normalizeQuotes(strings.ToLower(strings.TrimSpace(text)))
	for _, r := range chatRules {
		if r.Match(lower) {
			return Result{Category: r.Category, Confidence: r.Confidence, Rule: r.Name}
		}
	}
	return chatDefault
}

// ClassifyChat applies the noise filter and then the rule table. ok is false
// when the message is noise; the rule table is not consulted in that case.
func ClassifyChat(text string) (res Result, ok bool) {
	if IsNoise(text) {
		return Result{}, false
	}
	return CategorizeChat(text), true
}
