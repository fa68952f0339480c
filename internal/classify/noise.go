package classify

import (
	"regexp"
	"strings"
)

// NoiseReason names the filter rule that dropped a message. The empty
// reason means the message is not noise.
type NoiseReason string

const (
	NoiseNone      NoiseReason = ""
	NoiseShort     NoiseReason = "short"
	NoiseGreeting  NoiseReason = "greeting"
	NoiseAck       NoiseReason = "acknowledgement"
	NoiseUnmatched NoiseReason = "unmatched"
)

// trailer allows punctuation, symbols (emoji included), whitespace, and
// Slack emoji shortcodes after an otherwise anchored phrase.
const trailer = `(?:[\s\p{P}\p{S}]|:[a-z0-9_+\-]+:)*$`

var (
	// mentionWordRe matches the "@name" words StripMarkup leaves behind.
	mentionWordRe = regexp.MustCompile(`(?:^|\s)@[\w.\-]+`)

	urgencyRe = wordMatcher("urgent", "asap", "critical", "blocked", "help", "deadline")

	greetingRe = regexp.MustCompile(`^(?:` + strings.Join([]string{
		`hi`, `hello`, `hey`, `heya`, `hiya`, `yo`, `sup`,
		`hi all`, `hi team`, `hey all`, `hey team`, `hello all`, `hello team`, `hi everyone`, `hey everyone`,
		`good morning`, `good afternoon`, `good evening`, `good night`, `morning`, `gm`, `gn`,
		`thanks`, `thank you`, `thanks a lot`, `thanks so much`, `thank you so much`, `many thanks`, `thx`, `ty`, `tysm`,
		`ok`, `okay`, `k`, `kk`, `ok thanks`, `okay thanks`, `ok cool`,
		`lol`, `lmao`, `haha`, `hahaha`, `brb`, `omw`,
		`\+1`, `yes`, `yep`, `yup`, `no`, `nope`, `sure`, `np`, `no problem`, `no worries`,
		`sounds good`, `sounds great`, `got it`, `will do`, `on it`, `noted`, `done`,
		`cool`, `nice`, `great`, `awesome`, `perfect`, `agreed`, `same`,
		`bye`, `goodbye`, `see you`, `see ya`, `cya`, `later`, `ttyl`, `have a good one`,
	}, "|") + `)` + trailer)

	ackRe = regexp.MustCompile(`^(?:that'?s\s+)?(?:` + strings.Join([]string{
		`great`, `good`, `nice`, `awesome`, `amazing`, `excellent`, `fantastic`, `brilliant`,
		`solid`, `perfect`, `wonderful`, `stellar`, `superb`, `incredible`, `outstanding`, `cool`,
	}, "|") + `)\s+(?:work|job|stuff)` + trailer)
)

// Noise applies the chat noise filter to text and returns the reason it is
// noise, or NoiseNone.
//
// Every rule looks at StripMarkup(text), the same text adapters surface, so
// Noise(StripMarkup(text)) == Noise(text).
func Noise(text string) NoiseReason {
	lower := normalizeQuotes(strings.ToLower(StripMarkup(text)))
	if lower == "" {
		return NoiseShort
	}
	// "@alice thanks" is still a thank-you.
	body := strings.TrimSpace(mentionWordRe.ReplaceAllString(lower, " "))
	if body != "" && greetingRe.MatchString(body) {
		return NoiseGreeting
	}
	if body != "" && ackRe.MatchString(body) {
		return NoiseAck
	}
	// Mentions count as words: "@alice can you check?" is a request.
	if len(strings.Fields(lower)) < 4 && !urgencyRe.MatchString(lower) {
		return NoiseShort
	}
	return NoiseNone
}

// IsNoise reports whether text should be dropped before classification.
func IsNoise(text string) bool {
	return Noise(text) != NoiseNone
}
