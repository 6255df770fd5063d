package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rentum/rentum/internal/domain/services"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

const (
	baseConfidence    = 0.92
	confidenceStep    = 0.12
	minimumConfidence = 0.5
)

// fieldPatterns is an ordered list of candidate patterns for one field. The
// first pattern that matches wins; later patterns are looser and score lower.
type fieldPatterns struct {
	field    string
	patterns []*regexp.Regexp
	multi    bool
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(`(?im)` + expr)
	}
	return out
}

const (
	amount = `\$?(\d+(?:,\d{3})*(?:\.\d{2})?)`
	date   = `(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`
	person = `([a-zA-Z\s]+?)(?:\n|,|;|$)`
	place  = `([^,\n]+(?:,\s*[^,\n]+)*)`
	sqft   = `\s*(?:sq\.?\s*ft\.?|square\s*feet)`
)

var classPatterns = map[models.DocumentClass][]fieldPatterns{
	models.DocClassRentalAgreement: {
		{field: services.FieldTenantName, patterns: compile(
			`tenant[:\s]+`+person,
			`lessee[:\s]+`+person,
			`renter[:\s]+`+person,
		)},
		{field: services.FieldLandlordName, patterns: compile(
			`landlord[:\s]+`+person,
			`lessor[:\s]+`+person,
			`owner[:\s]+`+person,
		)},
		{field: services.FieldPropertyAddress, patterns: compile(
			`property[:\s]+`+place,
			`premises[:\s]+`+place,
			`address[:\s]+`+place,
		)},
		{field: services.FieldRentAmount, patterns: compile(
			`rent[:\s]*`+amount,
			`monthly\s+rent[:\s]*`+amount,
			amount+`\s*per\s*month`,
		)},
		{field: services.FieldSecurityDeposit, patterns: compile(
			`security\s+deposit[:\s]*`+amount,
			`deposit[:\s]*`+amount,
			`bond[:\s]*`+amount,
		)},
		{field: services.FieldLeaseStartDate, patterns: compile(
			`start\s+date[:\s]*`+date,
			`commence[:\s]*`+date,
			`beginning[:\s]*`+date,
		)},
		{field: services.FieldLeaseEndDate, patterns: compile(
			`end\s+date[:\s]*`+date,
			`expir[ye][:\s]*`+date,
			`terminat[ie][:\s]*`+date,
		)},
		{field: services.FieldPropertyType, patterns: compile(
			`property\s+type[:\s]+([a-zA-Z\s]+?)(?:\n|,|$)`,
			`\b(apartment|house|condo|townhouse|villa)\b`,
		)},
		{field: services.FieldUtilitiesIncluded, patterns: compile(
			`utilities(?:\s+included)?[:\s]+([^\n]+)`,
		)},
		{field: services.FieldPetPolicy, patterns: compile(
			`pets?(?:\s+policy)?[:\s]+([^\n]+)`,
			`\b(no\s+pets(?:\s+allowed)?|pets\s+allowed)\b`,
		)},
		{field: services.FieldKeyTerms, multi: true, patterns: compile(
			`^\s*(?:clause|term)\s*\d*[.:)]\s*([^\n]+)`,
		)},
	},
	models.DocClassIDCard: {
		{field: services.FieldName, patterns: compile(
			`name[:\s]+([a-zA-Z\s]+?)(?:\n|,|$)`,
			`([A-Z][a-z]+\s+[A-Z][a-z]+)`,
		)},
		{field: services.FieldIDNumber, patterns: compile(
			`id[:\s]*(\w+)`,
			`number[:\s]*(\w+)`,
			`(\d{8,})`,
		)},
		{field: services.FieldDateOfBirth, patterns: compile(
			`dob[:\s]*`+date,
			`birth[:\s]*`+date,
			`born[:\s]*`+date,
		)},
		{field: services.FieldAddress, patterns: compile(
			`address[:\s]+`+place,
			`residence[:\s]+`+place,
		)},
	},
	models.DocClassPropertyDocument: {
		{field: services.FieldPropertyType, patterns: compile(
			`type[:\s]+([a-zA-Z\s]+?)(?:\n|,|$)`,
			`(apartment|house|condo|townhouse|villa)`,
		)},
		{field: services.FieldArea, patterns: compile(
			`area[:\s]*(\d+(?:\.\d+)?)`+sqft,
			`(\d+(?:\.\d+)?)`+sqft,
			`size[:\s]*(\d+(?:\.\d+)?)`+sqft,
		)},
		{field: services.FieldBedrooms, patterns: compile(
			`bedrooms?[:\s]*(\d+)`,
			`(\d+)\s*bedrooms?`,
			`bed[:\s]*(\d+)`,
		)},
		{field: services.FieldBathrooms, patterns: compile(
			`bathrooms?[:\s]*(\d+(?:\.\d+)?)`,
			`(\d+(?:\.\d+)?)\s*bathrooms?`,
			`bath[:\s]*(\d+(?:\.\d+)?)`,
		)},
	},
}

// PatternExtractor implements services.ExtractionProvider by running the
// class patterns over recognized text.
type PatternExtractor struct {
	recognizer services.TextRecognizer
}

// NewPatternExtractor creates a pattern extractor on top of a recognizer
func NewPatternExtractor(recognizer services.TextRecognizer) *PatternExtractor {
	return &PatternExtractor{recognizer: recognizer}
}

// Extract implements services.ExtractionProvider
func (e *PatternExtractor) Extract(ctx context.Context, content []byte, class models.DocumentClass) (map[string]services.FieldValue, error) {
	fields, ok := classPatterns[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q", services.ErrUnknownDocumentClass, class)
	}

	recognized, err := e.recognizer.Recognize(ctx, content)
	if err != nil {
		return nil, err
	}
	return matchFields(recognized, fields), nil
}

func matchFields(recognized *services.RecognizedText, fields []fieldPatterns) map[string]services.FieldValue {
	out := make(map[string]services.FieldValue, len(fields))
	for _, fp := range fields {
		if fp.multi {
			if value, ok := matchAll(recognized.Text, fp.patterns); ok {
				out[fp.field] = services.FieldValue{
					Value:      value,
					Confidence: patternConfidence(0, recognized.Confidence),
				}
			}
			continue
		}
		for i, re := range fp.patterns {
			match := re.FindStringSubmatch(recognized.Text)
			if match == nil {
				continue
			}
			value := strings.TrimSpace(match[1])
			if value == "" {
				continue
			}
			out[fp.field] = services.FieldValue{
				Value:      value,
				Confidence: patternConfidence(i, recognized.Confidence),
			}
			break
		}
	}
	return out
}

func matchAll(text string, patterns []*regexp.Regexp) (string, bool) {
	var terms []string
	for _, re := range patterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			if term := strings.TrimSpace(match[1]); term != "" {
				terms = append(terms, term)
			}
		}
	}
	if len(terms) == 0 {
		return "", false
	}
	return strings.Join(terms, services.KeyTermsSeparator), true
}

// patternConfidence scales the recognizer confidence down for looser
// fallback patterns.
func patternConfidence(index int, textConfidence float64) float64 {
	c := baseConfidence - confidenceStep*float64(index)
	if c < minimumConfidence {
		c = minimumConfidence
	}
	return c * textConfidence
}
