package signal

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Source identifies an upstream integration.
type Source string

const (
	SourceSlack    Source = "slack"
	SourceTeams    Source = "teams"
	SourceGmail    Source = "gmail"
	SourceWhatsApp Source = "whatsapp"
	SourceAsana    Source = "asana"
	SourceLinear   Source = "linear"
	SourceJira     Source = "jira"
	SourceGitHub   Source = "github"
)

// KnownSources lists every source the pipeline knows about, connected or not.
func KnownSources() []Source {
	return []Source{
		SourceSlack, SourceTeams, SourceGmail, SourceWhatsApp,
		SourceAsana, SourceLinear, SourceJira, SourceGitHub,
	}
}

// Valid reports whether s is one of KnownSources.
func (s Source) Valid() bool {
	for _, k := range KnownSources() {
		if s == k {
			return true
		}
	}
	return false
}

var displayNames = map[Source]string{
	SourceGitHub:   "GitHub",
	SourceWhatsApp: "WhatsApp",
}

// DisplayName returns the product name for s, e.g. "Slack" or "GitHub".
func (s Source) DisplayName() string {
	if name, ok := displayNames[s]; ok {
		return name
	}
	// Casers are stateful; one per call.
	return cases.Title(language.English).String(string(s))
}

// Category is the closed taxonomy every signal is mapped into.
type Category string

const (
	CategoryCommitment Category = "commitment"
	CategoryDeadline   Category = "deadline"
	CategoryMention    Category = "mention"
	CategoryQuestion   Category = "question"
	CategoryBlocker    Category = "blocker"
	CategoryDecision   Category = "decision"
	CategoryEscalation Category = "escalation"
	CategoryUpdate     Category = "update"
)

// Categories returns all eight categories.
func Categories() []Category {
	return []Category{
		CategoryCommitment, CategoryDeadline, CategoryMention, CategoryQuestion,
		CategoryBlocker, CategoryDecision, CategoryEscalation, CategoryUpdate,
	}
}

// Valid reports whether c belongs to the taxonomy.
func (c Category) Valid() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// Field limits.
const (
	MaxTitleLen   = 100
	MaxSnippetLen = 300
)

// ErrInvalidCredential is returned by adapter constructors when a credential
// is malformed. It is the only error raised before any I/O happens.
var ErrInvalidCredential = errors.New("invalid credential")

// Signal is the canonical output unit of the pipeline.
type Signal struct {
	ID          string         `json:"id"`
	Source      Source         `json:"source"`
	SourceID    string         `json:"sourceId"`
	Category    Category       `json:"category"`
	Confidence  float64        `json:"confidence"`
	Title       string         `json:"title"`
	Snippet     string         `json:"snippet"`
	Owner       string         `json:"owner,omitempty"`
	OwnerEmail  string         `json:"ownerEmail,omitempty"`
	Sender      string         `json:"sender,omitempty"`
	SenderEmail string         `json:"senderEmail,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Deadline    *time.Time     `json:"deadline,omitempty"`
	URL         string         `json:"url"`
	Channel     string         `json:"channel,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewID builds the source-namespaced signal id.
func NewID(source Source, sourceID string) string {
	return string(source) + "-" + sourceID
}

// Normalize clamps confidence and truncates title and snippet in place.
func (s *Signal) Normalize() {
	s.Confidence = ClampConfidence(s.Confidence)
	s.Title = Truncate(strings.TrimSpace(s.Title), MaxTitleLen)
	s.Snippet = Truncate(strings.TrimSpace(s.Snippet), MaxSnippetLen)
	if s.ID == "" && s.SourceID != "" {
		s.ID = NewID(s.Source, s.SourceID)
	}
}

// ClampConfidence bounds c to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Truncate shortens s to at most max runes, ending in "..." when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return strings.TrimRight(string(runes[:max-3]), " ") + "..."
}

// SortByTimestampDesc stable-sorts signals newest first. Equal timestamps
// keep their input order.
func SortByTimestampDesc(signals []Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Timestamp.After(signals[j].Timestamp)
	})
}
