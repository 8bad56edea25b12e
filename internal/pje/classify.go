package pje

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// priorityKeywords are the procedural terms that raise a publication's
// priority. Matching is case-insensitive containment on the full text.
var priorityKeywords = []string{
	"liminar",
	"antecipação de tutela",
	"urgente",
	"mandado de segurança",
	"habeas corpus",
	"prazo",
	"intimação",
	"citação",
	"audiência",
	"sentença",
	"acórdão",
	"decisão",
	"despacho",
	"julgamento",
	"penhora",
	"bloqueio",
}

var (
	deadlineRe = regexp.MustCompile(`prazo\s+de\s+(\d+)\s+dias?`)
	hearingRe  = regexp.MustCompile(`audiência.+?(\d{2}/\d{2}/\d{4})`)
)

// AnalyzeContent classifies a publication's text into a priority level and
// reports which terms drove the decision. Explicit deadlines and hearing
// dates can only raise the level, never lower it.
func AnalyzeContent(content string) ContentAnalysis {
	folded := strings.ToLower(content)

	matched := make([]string, 0, 4)
	for _, kw := range priorityKeywords {
		if strings.Contains(folded, kw) {
			matched = append(matched, kw)
		}
	}

	var priority PriorityLevel
	switch {
	case len(matched) >= 3:
		priority = PriorityUrgent
	case len(matched) == 2:
		priority = PriorityHigh
	case len(matched) == 1:
		priority = PriorityMedium
	default:
		priority = PriorityLow
	}

	if m := deadlineRe.FindStringSubmatch(folded); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil {
			switch {
			case days <= 5:
				priority = MaxPriority(priority, PriorityUrgent)
			case days <= 15:
				priority = MaxPriority(priority, PriorityHigh)
			}
			matched = append(matched, fmt.Sprintf("Prazo de %d dias", days))
		}
	}

	if m := hearingRe.FindStringSubmatch(folded); m != nil {
		priority = MaxPriority(priority, PriorityHigh)
		matched = append(matched, fmt.Sprintf("Audiência em %s", m[1]))
	}

	return ContentAnalysis{Priority: priority, MatchedKeywords: matched}
}

// Summarize condenses a publication body into at most three sentences and
// caps the result at 200 characters.
func Summarize(content string) string {
	segments := sentenceRe.Split(content, -1)
	sentences := make([]string, 0, 3)
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		sentences = append(sentences, segment)
		if len(sentences) == 3 {
			break
		}
	}
	if len(sentences) == 0 {
		return "Sem conteúdo para resumir."
	}

	summary := strings.Join(sentences, ". ")
	runes := []rune(summary)
	if len(runes) > 200 {
		return string(runes[:197]) + "..."
	}
	return summary
}

var sentenceRe = regexp.MustCompile(`[.!?]+`)
