package classify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/signald/internal/signal"
)

func TestClassifyBusiness(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantType  BusinessType
		wantSig   BusinessSignalType
		wantPrio  Priority
		wantCat   signal.Category
		wantTitle string
	}{
		{
			name:     "availability question",
			text:     "Is the blue shirt available in size M?",
			wantType: BusinessTask,
			wantSig:  SignalQuestion,
			wantPrio: PriorityMedium,
			wantCat:  signal.CategoryQuestion,
		},
		{
			name:      "complaint",
			text:      "My package arrived damaged. I want my money back.",
			wantType:  BusinessProblem,
			wantSig:   SignalComplaint,
			wantPrio:  PriorityHigh,
			wantCat:   signal.CategoryEscalation,
			wantTitle: "🚨 Customer Issue: My package arrived damaged.",
		},
		{
			name:     "order medium",
			text:     "I would like to place an order for two cakes",
			wantType: BusinessTask,
			wantSig:  SignalOrder,
			wantPrio: PriorityMedium,
			wantCat:  signal.CategoryCommitment,
		},
		{
			name:     "order urgent",
			text:     "Need the invoice today for accounting please",
			wantType: BusinessTask,
			wantSig:  SignalOrder,
			wantPrio: PriorityHigh,
		},
		{
			name:     "question urgent",
			text:     "How much for express cleaning, need it asap?",
			wantSig:  SignalQuestion,
			wantPrio: PriorityHigh,
		},
		{
			name:     "positive feedback",
			text:     "The team did an amazing job with the catering",
			wantType: BusinessPositive,
			wantSig:  SignalPositiveFeedback,
			wantPrio: PriorityLow,
			wantCat:  signal.CategoryUpdate,
		},
		{
			name:     "urgent only",
			text:     "Please call me back urgently",
			wantType: BusinessTask,
			wantSig:  SignalUrgentRequest,
			wantPrio: PriorityHigh,
			wantCat:  signal.CategoryEscalation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClassifyBusiness(tt.text)
			require.True(t, ok)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, got.Type)
			}
			assert.Equal(t, tt.wantSig, got.SignalType)
			assert.Equal(t, tt.wantPrio, got.Priority)
			if tt.wantCat != "" {
				assert.Equal(t, tt.wantCat, got.Category)
			}
			if tt.wantTitle != "" {
				assert.Equal(t, tt.wantTitle, got.Title)
			}
			assert.Equal(t, priorityConfidence[got.Priority], got.Confidence)
		})
	}
}

func TestClassifyBusiness_Dropped(t *testing.T) {
	tests := []struct {
		text string
		want NoiseReason
	}{
		{"Hello!", NoiseGreeting},
		{"good morning", NoiseGreeting},
		{"cool cool", NoiseShort},
		{"ok then!", NoiseShort},
		{"I will pass by the shop later on", NoiseUnmatched},
		{"Loved it!", NoiseShort},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, ok := ClassifyBusiness(tt.text)
			assert.False(t, ok)
			assert.Equal(t, tt.want, BusinessNoise(tt.text))
		})
	}
}

func TestClassifyBusiness_ShortQuestionKept(t *testing.T) {
	got, ok := ClassifyBusiness("Open now?")
	require.True(t, ok)
	assert.Equal(t, SignalQuestion, got.SignalType)
}

func TestClassifyBusiness_TitleLength(t *testing.T) {
	long := "There is a problem with " + strings.Repeat("the delivery ", 20)
	got, ok := ClassifyBusiness(long)
	require.True(t, ok)
	prefix := businessLabels[SignalComplaint] + ": "
	require.True(t, strings.HasPrefix(got.Title, prefix))
	assert.LessOrEqual(t, utf8.RuneCountInString(strings.TrimPrefix(got.Title, prefix)), businessTitleLen)
}
