package official

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

const resultPageFixture = `<html><body>
<textarea name="resultados">
CALCULO DE INTERESES
   Tasa: 24,0000 %
   Intereses: $ 204,11
   Días del Período calculado: 31
   Total (Capital+Intereses): $ 10204,11
</textarea>
</body></html>`

// writeLatin1 serves a fixture the way the upstream does: ISO-8859-1 bytes.
func writeLatin1(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	encoded, err := charmap.ISO8859_1.NewEncoder().String(body)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	w.Write([]byte(encoded)) //nolint:errcheck
}

// upstreamStub mimics the legacy calculator for orchestrator tests.
type upstreamStub struct {
	t        *testing.T
	getBody  string
	postBody string
	posts    atomic.Int64
	lastForm url.Values
}

func (u *upstreamStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Add("Set-Cookie", "PHPSESSID=abc123; path=/; HttpOnly")
			w.Header().Add("Set-Cookie", "sc_ui=v2; path=/")
			writeLatin1(u.t, w, u.getBody)
		case http.MethodPost:
			u.posts.Add(1)
			if err := r.ParseForm(); err == nil {
				u.lastForm = r.PostForm
			}
			writeLatin1(u.t, w, u.postBody)
		default:
			http.Error(w, "method", http.StatusMethodNotAllowed)
		}
	})
}

func newStubCalculator(t *testing.T, stub *upstreamStub) *Calculator {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return NewCalculator(NewClientForURL(srv.URL), nil)
}

func TestCalculateEndToEnd(t *testing.T) {
	stub := &upstreamStub{t: t, getBody: formPageFixture, postBody: resultPageFixture}
	calc := newStubCalculator(t, stub)

	result, err := calc.Calculate(context.Background(), CalculationRequest{
		Amount:     10000,
		RateTypeID: "3",
		FromDate:   "2026-01-01",
		ToDate:     "2026-02-01",
	})
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	if result.Source != SourceOfficialEngine {
		t.Errorf("source = %q, want %q", result.Source, SourceOfficialEngine)
	}
	if result.Parsed.RatePct == nil || *result.Parsed.RatePct != 24 {
		t.Errorf("ratePct = %v, want 24", result.Parsed.RatePct)
	}
	if result.Parsed.Interest == nil || *result.Parsed.Interest != 204.11 {
		t.Errorf("interest = %v, want 204.11", result.Parsed.Interest)
	}
	if result.Parsed.Days == nil || *result.Parsed.Days != 31 {
		t.Errorf("days = %v, want 31", result.Parsed.Days)
	}
	if result.Parsed.Total == nil || *result.Parsed.Total != 10204.11 {
		t.Errorf("total = %v, want 10204.11", result.Parsed.Total)
	}

	// Wire format checks on the replayed form.
	form := stub.lastForm
	if got := form.Get("importe"); got != "10000" {
		t.Errorf("importe = %q, want 10000", got)
	}
	if got := form.Get("desde"); got != "01-01-2026" {
		t.Errorf("desde = %q, want 01-01-2026", got)
	}
	if got := form.Get("hasta"); got != "01-02-2026" {
		t.Errorf("hasta = %q, want 01-02-2026", got)
	}
	if got := form.Get("csrf_token"); got != "tok-xyz" {
		t.Errorf("csrf_token = %q, want tok-xyz", got)
	}
	if got := form.Get("script_case_init"); got != "1a2b3c" {
		t.Errorf("script_case_init = %q, want 1a2b3c", got)
	}
	if got := form.Get("bok"); got != "OK" {
		t.Errorf("bok = %q, want OK", got)
	}
	if got := form.Get("tasa_pactada"); got != "" {
		t.Errorf("tasa_pactada = %q, want empty", got)
	}
}

func TestCalculateAgreedRate(t *testing.T) {
	stub := &upstreamStub{t: t, getBody: formPageFixture, postBody: resultPageFixture}
	calc := newStubCalculator(t, stub)

	rate := 12.5
	_, err := calc.Calculate(context.Background(), CalculationRequest{
		Amount:     5000,
		RateTypeID: "6",
		FromDate:   "2026-01-01",
		ToDate:     "2026-02-01",
		AgreedRate: &rate,
	})
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	if got := stub.lastForm.Get("tasa_pactada"); got != "12,5" {
		t.Errorf("tasa_pactada = %q, want 12,5", got)
	}
}

func TestCalculateValidation(t *testing.T) {
	stub := &upstreamStub{t: t, getBody: formPageFixture, postBody: resultPageFixture}
	calc := newStubCalculator(t, stub)

	negRate := -1.0
	tests := []struct {
		name string
		req  CalculationRequest
		kind string
	}{
		{
			name: "zero amount",
			req:  CalculationRequest{Amount: 0, RateTypeID: "3", FromDate: "2026-01-01", ToDate: "2026-02-01"},
			kind: KindInvalidAmount,
		},
		{
			name: "negative amount",
			req:  CalculationRequest{Amount: -10, RateTypeID: "3", FromDate: "2026-01-01", ToDate: "2026-02-01"},
			kind: KindInvalidAmount,
		},
		{
			name: "non-numeric rate type",
			req:  CalculationRequest{Amount: 100, RateTypeID: "3a", FromDate: "2026-01-01", ToDate: "2026-02-01"},
			kind: KindInvalidRateType,
		},
		{
			name: "bad date",
			req:  CalculationRequest{Amount: 100, RateTypeID: "3", FromDate: "enero", ToDate: "2026-02-01"},
			kind: KindInvalidDate,
		},
		{
			name: "agreed rate missing",
			req:  CalculationRequest{Amount: 100, RateTypeID: "6", FromDate: "2026-01-01", ToDate: "2026-02-01"},
			kind: KindInvalidAgreedRate,
		},
		{
			name: "agreed rate negative",
			req:  CalculationRequest{Amount: 100, RateTypeID: "6", FromDate: "2026-01-01", ToDate: "2026-02-01", AgreedRate: &negRate},
			kind: KindInvalidAgreedRate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Calculate(context.Background(), tt.req)
			if kind := ErrorKind(err); kind != tt.kind {
				t.Fatalf("error kind = %q, want %q", kind, tt.kind)
			}
			if !IsValidationError(err) {
				t.Errorf("IsValidationError() = false, want true")
			}
		})
	}

	if n := stub.posts.Load(); n != 0 {
		t.Errorf("upstream POSTs = %d, want 0 for validation failures", n)
	}
}

func TestCalculateSessionInvalidSkipsPost(t *testing.T) {
	// Form page without the csrf token: the calculation must fail before
	// any POST reaches the upstream.
	noToken := strings.ReplaceAll(formPageFixture, "csrf_token", "otro_campo")
	stub := &upstreamStub{t: t, getBody: noToken, postBody: resultPageFixture}
	calc := newStubCalculator(t, stub)

	_, err := calc.Calculate(context.Background(), CalculationRequest{
		Amount:     10000,
		RateTypeID: "3",
		FromDate:   "2026-01-01",
		ToDate:     "2026-02-01",
	})
	if kind := ErrorKind(err); kind != KindSessionInvalid {
		t.Fatalf("error kind = %q, want %q", kind, KindSessionInvalid)
	}
	if n := stub.posts.Load(); n != 0 {
		t.Errorf("upstream POSTs = %d, want 0", n)
	}
}

func TestCalculateUpstreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mantenimiento", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	calc := NewCalculator(NewClientForURL(srv.URL), nil)
	_, err := calc.Calculate(context.Background(), CalculationRequest{
		Amount:     10000,
		RateTypeID: "3",
		FromDate:   "2026-01-01",
		ToDate:     "2026-02-01",
	})
	if kind := ErrorKind(err); kind != "HTTP_503" {
		t.Fatalf("error kind = %q, want HTTP_503", kind)
	}
	if IsValidationError(err) {
		t.Error("IsValidationError() = true for upstream failure")
	}
}

func TestCalculateEmptyResult(t *testing.T) {
	stub := &upstreamStub{t: t, getBody: formPageFixture, postBody: `<html>sin resultados</html>`}
	calc := newStubCalculator(t, stub)

	_, err := calc.Calculate(context.Background(), CalculationRequest{
		Amount:     10000,
		RateTypeID: "3",
		FromDate:   "2026-01-01",
		ToDate:     "2026-02-01",
	})
	if kind := ErrorKind(err); kind != KindResultEmpty {
		t.Fatalf("error kind = %q, want %q", kind, KindResultEmpty)
	}
}
