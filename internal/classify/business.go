package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/signald/internal/signal"
)

// BusinessType is the coarse kind of a customer message.
type BusinessType string

const (
	BusinessProblem  BusinessType = "problem"
	BusinessTask     BusinessType = "task"
	BusinessPositive BusinessType = "positive"
)

// BusinessSignalType is the fine-grained kind used for titles and mapping.
type BusinessSignalType string

const (
	SignalComplaint        BusinessSignalType = "complaint"
	SignalOrder            BusinessSignalType = "order"
	SignalQuestion         BusinessSignalType = "question"
	SignalPositiveFeedback BusinessSignalType = "positive_feedback"
	SignalUrgentRequest    BusinessSignalType = "urgent_request"
)

// Priority of a customer message.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

const businessTitleLen = 50

// BusinessResult is a classified customer message.
type BusinessResult struct {
	Type       BusinessType
	SignalType BusinessSignalType
	Priority   Priority
	Category   signal.Category
	Confidence float64
	Title      string
}

var (
	businessGreetingRe = regexp.MustCompile(`^(?:` + strings.Join([]string{
		`hi`, `hello`, `hey`, `hola`, `good morning`, `good afternoon`, `good evening`,
		`thanks`, `thank you`, `ok`, `okay`, `bye`, `goodbye`, `yes`, `no`,
	}, "|") + `)` + trailer)

	complaintRe = wordMatcher(
		"problem", "issue", "broken", "damaged", "defective", "disappointed", "disappointing",
		"delayed", "late", "scam", "fraud", "refund", "wrong", "terrible", "horrible", "worst",
		"not working", "doesn't work", "never arrived", "never received", "missing", "complaint", "angry",
	)
	orderRe = wordMatcher(
		"order", "orders", "payment", "pay", "paid", "invoice", "booking", "book", "reservation",
		"price", "pricing", "quote", "purchase", "buy", "checkout", "delivery", "shipping",
	)
	questionRe = wordMatcher(
		"how much", "available", "availability", "stock", "in stock", "do you have",
		"is there", "can i", "what time", "open", "opening hours",
	)
	positiveRe = wordMatcher(
		"thank", "thanks", "great", "love", "loved", "amazing", "excellent", "awesome",
		"happy", "perfect", "wonderful", "recommend", "best", "fantastic",
	)
	businessUrgentRe = wordMatcher("urgent", "urgently", "asap", "emergency", "immediately", "right now", "today")
)

var businessLabels = map[BusinessSignalType]string{
	SignalComplaint:        "🚨 Customer Issue",
	SignalOrder:            "📦 Order/Inquiry",
	SignalQuestion:         "❓ Customer Question",
	SignalPositiveFeedback: "⭐ Positive Feedback",
	SignalUrgentRequest:    "⚡ Urgent Request",
}

var businessCategories = map[BusinessSignalType]signal.Category{
	SignalComplaint:        signal.CategoryEscalation,
	SignalOrder:            signal.CategoryCommitment,
	SignalQuestion:         signal.CategoryQuestion,
	SignalPositiveFeedback: signal.CategoryUpdate,
	SignalUrgentRequest:    signal.CategoryEscalation,
}

var priorityConfidence = map[Priority]float64{
	PriorityHigh:   0.85,
	PriorityMedium: 0.70,
	PriorityLow:    0.55,
}

// BusinessNoise returns why a customer message is not a signal, or
// NoiseNone if it is one.
func BusinessNoise(text string) NoiseReason {
	trimmed := strings.TrimSpace(text)
	lower := normalizeQuotes(strings.ToLower(trimmed))
	if businessGreetingRe.MatchString(lower) {
		return NoiseGreeting
	}
	if utf8.RuneCountInString(trimmed) < 10 && !strings.Contains(trimmed, "?") {
		return NoiseShort
	}
	if _, ok := bucket(lower, utf8.RuneCountInString(trimmed)); !ok {
		return NoiseUnmatched
	}
	return NoiseNone
}

// ClassifyBusiness classifies an inbound customer message. ok is false when
// the message is a greeting, too short, or matches no bucket.
func ClassifyBusiness(text string) (res BusinessResult, ok bool) {
	if BusinessNoise(text) != NoiseNone {
		return BusinessResult{}, false
	}
	trimmed := strings.TrimSpace(text)
	lower := normalizeQuotes(strings.ToLower(trimmed))
	res, _ = bucket(lower, utf8.RuneCountInString(trimmed))
	res.Category = businessCategories[res.SignalType]
	res.Confidence = priorityConfidence[res.Priority]
	res.Title = businessLabels[res.SignalType] + ": " + signal.Truncate(FirstSentence(trimmed), businessTitleLen)
	return res, true
}

func bucket(lower string, length int) (BusinessResult, bool) {
	urgent := businessUrgentRe.MatchString(lower)
	escalate := func(p Priority) Priority {
		if urgent {
			return PriorityHigh
		}
		return p
	}

	switch {
	case complaintRe.MatchString(lower):
		return BusinessResult{Type: BusinessProblem, SignalType: SignalComplaint, Priority: PriorityHigh}, true
	case orderRe.MatchString(lower):
		return BusinessResult{Type: BusinessTask, SignalType: SignalOrder, Priority: escalate(PriorityMedium)}, true
	case strings.Contains(lower, "?") || questionRe.MatchString(lower):
		return BusinessResult{Type: BusinessTask, SignalType: SignalQuestion, Priority: escalate(PriorityMedium)}, true
	case length > 20 && positiveRe.MatchString(lower):
		return BusinessResult{Type: BusinessPositive, SignalType: SignalPositiveFeedback, Priority: PriorityLow}, true
	case urgent:
		return BusinessResult{Type: BusinessTask, SignalType: SignalUrgentRequest, Priority: PriorityHigh}, true
	}
	return BusinessResult{}, false
}
