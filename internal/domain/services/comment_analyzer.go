package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

type keywordGroup struct {
	name     string
	category models.Category
	keywords []string
}

// wordPatterns matches each keyword as a whole word, so "unreliable" is not
// read as "reliable".
var wordPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, groups := range [][]keywordGroup{greenKeywords, redKeywords} {
		for _, group := range groups {
			for _, keyword := range group.keywords {
				wordPatterns[keyword] = regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
			}
		}
	}
}

var greenKeywords = []keywordGroup{
	{"Payment", models.CategoryPaymentReliability, []string{"timely", "prompt", "regular", "consistent", "reliable", "punctual"}},
	{"Maintenance", models.CategoryPropertyMaintenance, []string{"clean", "well-maintained", "careful", "responsible", "tidy"}},
	{"Communication", models.CategoryCommunication, []string{"responsive", "clear", "polite", "professional", "cooperative"}},
	{"Behavior", "", []string{"respectful", "quiet", "friendly", "trustworthy", "honest"}},
}

var redKeywords = []keywordGroup{
	{"Payment", models.CategoryPaymentReliability, []string{"late", "delayed", "missed", "defaulted", "irregular", "bounced"}},
	{"Maintenance", models.CategoryPropertyMaintenance, []string{"damaged", "dirty", "neglected", "careless", "messy"}},
	{"Communication", models.CategoryCommunication, []string{"unresponsive", "rude", "aggressive", "difficult", "argumentative"}},
	{"Behavior", "", []string{"noisy", "disruptive", "problematic", "unreliable", "dishonest"}},
}

var (
	negationPattern    = regexp.MustCompile(`\b(?:never|not|didn't|wouldn't|couldn't)\b`)
	consistencyPattern = regexp.MustCompile(`always|every time|consistently`)
)

// KeywordAnalyzer flags comments by keyword lists. It is deterministic and
// needs no network.
type KeywordAnalyzer struct{}

// NewKeywordAnalyzer creates the default comment analyzer
func NewKeywordAnalyzer() *KeywordAnalyzer {
	return &KeywordAnalyzer{}
}

// Analyze implements CommentAnalyzer. Keywords match whole words of the
// lower-cased text.
func (a *KeywordAnalyzer) Analyze(ctx context.Context, comments string) (*CommentAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.ToLower(comments)

	analysis := &CommentAnalysis{
		Green: matchKeywords(text, greenKeywords),
		Red:   matchKeywords(text, redKeywords),
	}

	mentionsPayment := containsAny(text, "pay", "payment", "rent")
	if negationPattern.MatchString(text) && mentionsPayment {
		analysis.Red = append(analysis.Red, TextFlag{
			Label:    "Payment: Negative payment history mentioned",
			Category: models.CategoryPaymentReliability,
		})
	}
	if consistencyPattern.MatchString(text) && (mentionsPayment || strings.Contains(text, "time")) {
		analysis.Green = append(analysis.Green, TextFlag{
			Label:    "Payment: Consistent positive behavior",
			Category: models.CategoryPaymentReliability,
		})
	}
	return analysis, nil
}

func matchKeywords(text string, groups []keywordGroup) []TextFlag {
	var flags []TextFlag
	for _, group := range groups {
		for _, keyword := range group.keywords {
			if wordPatterns[keyword].MatchString(text) {
				flags = append(flags, TextFlag{
					Label:    fmt.Sprintf("%s: %s", group.name, keyword),
					Category: group.category,
				})
			}
		}
	}
	return flags
}

func containsAny(text string, words ...string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
