package official

import "testing"

func TestParseCalculationResult(t *testing.T) {
	html := `<textarea name="resultados">
Tasa: 24,0000 %
   Intereses: $ 204,11
   Días del Período calculado: 31
   Total (Capital+Intereses): $ 10204,11
</textarea>`

	text, parsed, err := ParseCalculationResult(html)
	if err != nil {
		t.Fatalf("ParseCalculationResult() error = %v", err)
	}

	if text == "" {
		t.Fatal("empty result text")
	}
	if parsed.RatePct == nil || *parsed.RatePct != 24 {
		t.Errorf("ratePct = %v, want 24", parsed.RatePct)
	}
	if parsed.Interest == nil || *parsed.Interest != 204.11 {
		t.Errorf("interest = %v, want 204.11", parsed.Interest)
	}
	if parsed.Days == nil || *parsed.Days != 31 {
		t.Errorf("days = %v, want 31", parsed.Days)
	}
	if parsed.Total == nil || *parsed.Total != 10204.11 {
		t.Errorf("total = %v, want 10204.11", parsed.Total)
	}
}

func TestParseCalculationResultShortDayLabel(t *testing.T) {
	html := `<textarea name="resultados">
Dias calculado: 15
Total (Capital+Intereses): $ 500,25
</textarea>`

	_, parsed, err := ParseCalculationResult(html)
	if err != nil {
		t.Fatalf("ParseCalculationResult() error = %v", err)
	}
	if parsed.Days == nil || *parsed.Days != 15 {
		t.Errorf("days = %v, want 15", parsed.Days)
	}
	if parsed.RatePct != nil {
		t.Errorf("ratePct = %v, want nil", *parsed.RatePct)
	}
}

func TestParseCalculationResultNormalizesText(t *testing.T) {
	html := "<textarea name=\"resultados\">linea 1\r\n   linea 2\r\nTotal (x): $ 1,50\r\n</textarea>"

	text, _, err := ParseCalculationResult(html)
	if err != nil {
		t.Fatalf("ParseCalculationResult() error = %v", err)
	}
	want := "linea 1\nlinea 2\nTotal (x): $ 1,50"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestParseCalculationResultEmpty(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no textarea", `<html><body>ok</body></html>`},
		{"blank textarea", `<textarea name="resultados">   </textarea>`},
		{"no total line", `<textarea name="resultados">Tasa: 24 %</textarea>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseCalculationResult(tt.html)
			if kind := ErrorKind(err); kind != KindResultEmpty {
				t.Fatalf("error kind = %q, want %q", kind, KindResultEmpty)
			}
		})
	}
}
