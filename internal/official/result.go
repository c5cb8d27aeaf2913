package official

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/estudiomv/webjuridico/pkg/textutil"
)

// ParsedResult holds the structured fields derived from the result text.
// Only Total is mandatory; the other fields are nil when the corresponding
// line is absent or unparsable.
type ParsedResult struct {
	RatePct  *float64 `json:"ratePct"`
	Interest *float64 `json:"interest"`
	Days     *int     `json:"days"`
	Total    *float64 `json:"total"`
}

// CalculationResult is a completed official calculation.
type CalculationResult struct {
	Text       string       `json:"text"`
	Parsed     ParsedResult `json:"parsed"`
	Source     string       `json:"source"`
	ComputedAt time.Time    `json:"updatedAt"`
}

// The calculator returns its output as pipe-delimited free text inside a
// textarea. These patterns are the single place that knows the line shapes;
// an upstream wording change is fixed here and nowhere else.
var (
	resultTextareaPattern = regexp.MustCompile(`(?is)<textarea[^>]*name=["']resultados["'][^>]*>(.*?)</textarea>`)
	resultRatePattern     = regexp.MustCompile(`(?i)Tasa:\s*([-\d.,]+)\s*%`)
	resultInterestPattern = regexp.MustCompile(`(?i)Intereses:\s*\$\s*([-\d.,]+)`)
	resultDaysPattern     = regexp.MustCompile(`(?i)D[ií]as(?:\s+del\s+Per[ií]odo)?\s+calculado:\s*(\d+)`)
	resultTotalPattern    = regexp.MustCompile(`(?i)Total\s*\([^)]+\):\s*\$\s*([-\d.,]+)`)
	lineIndentPattern     = regexp.MustCompile(`\n\s+`)
)

func matchNumber(p *regexp.Regexp, text string) *float64 {
	m := p.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, ok := textutil.ParseLocalizedNumber(m[1])
	if !ok {
		return nil
	}
	return &v
}

// ParseCalculationResult extracts the result block from the POST response
// and derives the structured fields. Fails with OFFICIAL_RESULT_EMPTY when
// the textarea is missing or blank (the upstream's way of rejecting a
// combination server-side) or when no usable total can be derived; the
// other fields degrade to nil individually.
func ParseCalculationResult(html string) (string, ParsedResult, error) {
	var block string
	if m := resultTextareaPattern.FindStringSubmatch(html); m != nil {
		block = m[1]
	}

	text := textutil.DecodeEntities(block)
	text = strings.ReplaceAll(text, "\r", "")
	text = lineIndentPattern.ReplaceAllString(text, "\n")
	text = strings.TrimSpace(text)

	if text == "" {
		return "", ParsedResult{}, NewError(KindResultEmpty)
	}

	parsed := ParsedResult{
		RatePct:  matchNumber(resultRatePattern, text),
		Interest: matchNumber(resultInterestPattern, text),
		Total:    matchNumber(resultTotalPattern, text),
	}
	if m := resultDaysPattern.FindStringSubmatch(text); m != nil {
		if d, err := strconv.Atoi(m[1]); err == nil {
			parsed.Days = &d
		}
	}

	if parsed.Total == nil {
		return "", ParsedResult{}, NewError(KindResultEmpty)
	}

	return text, parsed, nil
}
