package official

import (
	"regexp"
	"strings"
	"time"

	"github.com/estudiomv/webjuridico/pkg/textutil"
)

// RateOption is one selectable rate type of the official calculator.
// AnnualRate is nil for variable or contract-defined rates.
type RateOption struct {
	ID         string   `json:"value"`
	Label      string   `json:"label"`
	AnnualRate *float64 `json:"annualRate"`
}

// Snapshot sources.
const (
	SourceOfficial      = "official"
	SourceCache         = "cache"
	SourceCacheFallback = "cache_fallback"
	SourceFallback      = "fallback"
)

// CatalogSnapshot is the rate catalog plus its provenance.
type CatalogSnapshot struct {
	Items     []RateOption `json:"items"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Source    string       `json:"source"`
	Note      string       `json:"note,omitempty"`
}

// knownRateIDs resolves labels whose option value attribute is unreliable
// in the legacy markup. Keys are normalized (accent-stripped, uppercase).
var knownRateIDs = map[string]string{
	"06%":           "13",
	"08%":           "10",
	"24%":           "3",
	"32%":           "4",
	"36%":           "5",
	"48%":           "9",
	"56%":           "11",
	"PACTADA":       "6",
	"SIN INTERESES": "8",
	"T. ACTIVA 30 DIAS BNA":       "2",
	"T. ACTIVA 30 DIAS BNA X 1,5": "7",
	"T. ALIMENTOS ART.552 CCCN BCRA + T.A. BNA": "14",
	"T. PASIVA USO JUSTICIA BCRA":               "1",
}

// blockedHints identify the upstream WAF's block page. Checked before any
// structural parsing so a perimeter block is never misreported as a page
// shape change.
var blockedHints = []string{
	"Acción no Permitida",
	"Accion no Permitida",
	"Página Web Bloqueada",
	"Pagina Web Bloqueada",
}

var (
	rateSelectPattern = regexp.MustCompile(`(?is)<select[^>]*(?:id\s*=\s*["'][^"']*id_tipo_tasa[^"']*["']|name\s*=\s*["']id_tipo_tasa["'])[^>]*>(.*?)</select>`)
	optionPattern     = regexp.MustCompile(`(?is)<option[^>]*value\s*=\s*["']([^"']*)["'][^>]*>(.*?)</option>`)
	annualRatePattern = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{1,4})?)\s*%`)
	numericIDPattern  = regexp.MustCompile(`^[0-9]+$`)
)

// parseAnnualRate extracts the percentage a label announces, if any.
func parseAnnualRate(label string) *float64 {
	m := annualRatePattern.FindStringSubmatch(textutil.CleanLabel(label))
	if m == nil {
		return nil
	}
	v, ok := textutil.ParseLocalizedNumber(m[1])
	if !ok {
		return nil
	}
	return &v
}

// normalizeRateOptions cleans, id-resolves and dedupes raw options.
// Options that still lack a numeric id after the known-label lookup are
// discarded.
func normalizeRateOptions(raw []RateOption) []RateOption {
	seen := make(map[string]struct{})
	out := make([]RateOption, 0, len(raw))

	for _, item := range raw {
		label := textutil.CleanLabel(item.Label)
		if label == "" {
			continue
		}

		id := textutil.CleanLabel(item.ID)
		if !numericIDPattern.MatchString(id) {
			if mapped, ok := knownRateIDs[textutil.NormalizeKey(label)]; ok {
				id = mapped
			}
		}
		if !numericIDPattern.MatchString(id) {
			continue
		}

		annual := item.AnnualRate
		if annual == nil {
			annual = parseAnnualRate(label)
			if annual == nil && textutil.NormalizeKey(label) == "SIN INTERESES" {
				zero := 0.0
				annual = &zero
			}
		}

		key := id + "|" + label
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, RateOption{ID: id, Label: label, AnnualRate: annual})
	}

	return out
}

// ParseRateCatalog extracts the rate-type options from the calculator's
// form page. Fails with WAF_BLOCKED on a perimeter block page,
// RATE_SELECT_NOT_FOUND when the select is missing and EMPTY_PARSE when no
// usable options survive normalization.
func ParseRateCatalog(html string) ([]RateOption, error) {
	for _, hint := range blockedHints {
		if strings.Contains(html, hint) {
			return nil, NewError(KindWAFBlocked)
		}
	}

	selectMatch := rateSelectPattern.FindStringSubmatch(html)
	if selectMatch == nil {
		return nil, NewError(KindRateSelectNotFound)
	}

	var raw []RateOption
	for _, m := range optionPattern.FindAllStringSubmatch(selectMatch[1], -1) {
		raw = append(raw, RateOption{
			ID:         textutil.CleanLabel(m[1]),
			Label:      textutil.CleanLabel(m[2]),
			AnnualRate: parseAnnualRate(m[2]),
		})
	}

	items := normalizeRateOptions(raw)
	if len(items) == 0 {
		return nil, NewError(KindEmptyParse)
	}
	return items, nil
}

func ratePtr(v float64) *float64 { return &v }

// FallbackCatalog returns the static rate list used when neither the
// upstream nor a cached snapshot is available. Mirrors the calculator's
// catalog as last verified by hand.
func FallbackCatalog() []RateOption {
	return []RateOption{
		{ID: "13", Label: "06%", AnnualRate: ratePtr(6)},
		{ID: "10", Label: "08%", AnnualRate: ratePtr(8)},
		{ID: "3", Label: "24%", AnnualRate: ratePtr(24)},
		{ID: "4", Label: "32%", AnnualRate: ratePtr(32)},
		{ID: "5", Label: "36%", AnnualRate: ratePtr(36)},
		{ID: "9", Label: "48%", AnnualRate: ratePtr(48)},
		{ID: "11", Label: "56%", AnnualRate: ratePtr(56)},
		{ID: "6", Label: "PACTADA", AnnualRate: nil},
		{ID: "8", Label: "SIN INTERESES", AnnualRate: ratePtr(0)},
		{ID: "2", Label: "T. ACTIVA 30 DIAS BNA", AnnualRate: nil},
		{ID: "7", Label: "T. ACTIVA 30 DIAS BNA X 1,5", AnnualRate: nil},
		{ID: "14", Label: "T. ALIMENTOS ART.552 CCCN BCRA + T.A. BNA", AnnualRate: nil},
		{ID: "1", Label: "T. PASIVA USO JUSTICIA BCRA", AnnualRate: nil},
	}
}
