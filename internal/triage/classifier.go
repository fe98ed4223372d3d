package triage

import (
	"math"
	"strings"

	"github.com/muni-info/backend/internal/models"
)

const (
	maxCategoryConfidence = 0.95
	maxPriorityConfidence = 0.9

	fallbackCategoryConfidence = 0.5
	fallbackPriorityConfidence = 0.6

	maxKeywords          = 10
	maxUrgencyIndicators = 5
)

// Classifier scores complaint text against fixed keyword tables. It holds no
// state, so a single value can serve concurrent callers.
type Classifier struct{}

func New() Classifier {
	return Classifier{}
}

// Classify analyzes free-text and an optional location string. It never
// fails: text with no keyword evidence degrades to Other/medium with the
// fallback confidences.
func (Classifier) Classify(description, location string) models.Classification {
	text := strings.ToLower(description)
	if location != "" {
		text += " " + strings.ToLower(location)
	}

	category, categoryConfidence := classifyCategory(text)
	priority, priorityConfidence := classifyPriority(text)

	return models.Classification{
		Category:           category,
		CategoryConfidence: categoryConfidence,
		Priority:           priority,
		PriorityConfidence: priorityConfidence,
		Department:         DepartmentFor(category),
		Keywords:           matchedTerms(text, category, maxKeywords),
		UrgencyIndicators:  urgencyIndicators(text),
	}
}

func (t keywordTable) score(text string) float64 {
	score := 0.0
	for _, kw := range t.keywords {
		if n := len(kw.re.FindAllStringIndex(text, -1)); n > 0 {
			score += float64(n) * kw.weight
		}
	}
	return score
}

func classifyCategory(text string) (string, float64) {
	bestIdx := -1
	bestScore := 0.0
	total := 0.0
	for i, table := range categoryTables {
		s := table.score(text)
		total += s
		if s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}
	if bestIdx == -1 || bestScore == 0 {
		return CategoryOther, fallbackCategoryConfidence
	}
	return categoryTables[bestIdx].name, math.Min(maxCategoryConfidence, bestScore/total)
}

func classifyPriority(text string) (models.Priority, float64) {
	scores := make([]float64, len(tierTables))
	for i, table := range tierTables {
		scores[i] = table.score(text)
	}

	// Pattern boosts beyond plain keyword evidence.
	if breakageRe.MatchString(text) {
		scores[tierHigh] += 2
	}
	if elapsedTimeRe.MatchString(text) {
		scores[tierMedium] += 1
	}

	bestIdx := -1
	bestScore := 0.0
	total := 0.0
	for i, s := range scores {
		total += s
		if s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}
	if bestIdx == -1 || bestScore == 0 {
		return models.PriorityMedium, fallbackPriorityConfidence
	}

	priority := models.Priority(tierTables[bestIdx].name)
	return priority, math.Min(maxPriorityConfidence, bestScore/total)
}

// matchedTerms collects the winning category's keywords present in the text.
// Other has no keyword table, so it yields none.
func matchedTerms(text, category string, limit int) []string {
	for _, table := range categoryTables {
		if table.name != category {
			continue
		}
		var terms []string
		for _, kw := range table.keywords {
			if kw.re.MatchString(text) {
				terms = append(terms, kw.term)
				if len(terms) == limit {
					break
				}
			}
		}
		return terms
	}
	return nil
}

func urgencyIndicators(text string) []string {
	var indicators []string
	seen := map[string]bool{}
	for _, table := range tierTables {
		for _, kw := range table.keywords {
			if seen[kw.term] || !kw.re.MatchString(text) {
				continue
			}
			seen[kw.term] = true
			indicators = append(indicators, kw.term)
			if len(indicators) == maxUrgencyIndicators {
				return indicators
			}
		}
	}
	return indicators
}
