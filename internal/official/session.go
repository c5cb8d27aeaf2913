package official

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/estudiomv/webjuridico/pkg/textutil"
)

// SessionContext holds the one-shot session state extracted from a fresh
// GET of the calculator form page. It is request-scoped: the upstream's
// anti-forgery token is short-lived, so a context is never persisted or
// reused across calculations.
type SessionContext struct {
	ScriptCaseInit string
	CSRFToken      string
	CookieHeader   string
}

var hiddenFieldPatterns = map[string]*regexp.Regexp{
	"script_case_init": hiddenFieldPattern("script_case_init"),
	"csrf_token":       hiddenFieldPattern("csrf_token"),
}

func hiddenFieldPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)name=["']` + regexp.QuoteMeta(name) + `["']\s+value=["']([^"']*)`)
}

// extractFieldValue pulls a hidden form field's value out of raw markup.
func extractFieldValue(html, name string) string {
	p, ok := hiddenFieldPatterns[name]
	if !ok {
		p = hiddenFieldPattern(name)
	}
	m := p.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return textutil.CleanLabel(m[1])
}

// extractCookieHeader folds every Set-Cookie header's key=value portion
// into a single Cookie header string, dropping attributes like Path or
// HttpOnly.
func extractCookieHeader(headers http.Header) string {
	var pairs []string
	for _, line := range headers.Values("Set-Cookie") {
		if pair := strings.SplitN(line, ";", 2)[0]; pair != "" {
			pairs = append(pairs, pair)
		}
	}
	return strings.Join(pairs, "; ")
}

// ExtractSession builds the per-call session context from the form page
// response. Partial session state is unusable upstream, so missing any of
// the three pieces fails with OFFICIAL_SESSION_INVALID.
func ExtractSession(html string, headers http.Header) (*SessionContext, error) {
	sess := &SessionContext{
		ScriptCaseInit: extractFieldValue(html, "script_case_init"),
		CSRFToken:      extractFieldValue(html, "csrf_token"),
		CookieHeader:   extractCookieHeader(headers),
	}
	if sess.ScriptCaseInit == "" || sess.CSRFToken == "" || sess.CookieHeader == "" {
		return nil, NewError(KindSessionInvalid)
	}
	return sess, nil
}
