package official

import "testing"

const formPageFixture = `<html><body>
<form name="form_calculadora" method="post">
<input type="hidden" name="script_case_init" value="1a2b3c"/>
<input type="hidden" name="csrf_token" value="tok-xyz"/>
<select id="id_tipo_tasa_obj" name="id_tipo_tasa">
  <option value="3">24%</option>
  <option value="4">32%</option>
  <option value="6">PACTADA</option>
  <option value="8">SIN INTERESES</option>
  <option value="2">T. ACTIVA 30 DIAS BNA</option>
  <option value="3">24%</option>
  <option value="abc">56%</option>
  <option value="xx">rate-without-mapping</option>
</select>
</form>
</body></html>`

func TestParseRateCatalog(t *testing.T) {
	items, err := ParseRateCatalog(formPageFixture)
	if err != nil {
		t.Fatalf("ParseRateCatalog() error = %v", err)
	}

	// Duplicate "3|24%" collapses, "56%" resolves via the known-label
	// table, the unmappable option is discarded.
	if len(items) != 6 {
		t.Fatalf("got %d items, want 6: %+v", len(items), items)
	}

	for _, item := range items {
		if !numericIDPattern.MatchString(item.ID) {
			t.Errorf("non-numeric id %q for label %q", item.ID, item.Label)
		}
	}

	byLabel := make(map[string]RateOption)
	for _, item := range items {
		byLabel[item.Label] = item
	}

	if got := byLabel["56%"]; got.ID != "11" {
		t.Errorf("label 56%% resolved to id %q, want 11", got.ID)
	}
	if got := byLabel["24%"]; got.AnnualRate == nil || *got.AnnualRate != 24 {
		t.Errorf("label 24%% annualRate = %v, want 24", got.AnnualRate)
	}
	if got := byLabel["SIN INTERESES"]; got.AnnualRate == nil || *got.AnnualRate != 0 {
		t.Errorf("SIN INTERESES annualRate = %v, want 0", got.AnnualRate)
	}
	if got := byLabel["PACTADA"]; got.AnnualRate != nil {
		t.Errorf("PACTADA annualRate = %v, want nil", *got.AnnualRate)
	}
}

func TestParseRateCatalogBlocked(t *testing.T) {
	// The WAF marker wins even when a well-formed select is present.
	html := `<html><h1>Página Web Bloqueada</h1>` + formPageFixture + `</html>`

	_, err := ParseRateCatalog(html)
	if kind := ErrorKind(err); kind != KindWAFBlocked {
		t.Fatalf("error kind = %q, want %q", kind, KindWAFBlocked)
	}
}

func TestParseRateCatalogNoSelect(t *testing.T) {
	_, err := ParseRateCatalog(`<html><body><p>mantenimiento</p></body></html>`)
	if kind := ErrorKind(err); kind != KindRateSelectNotFound {
		t.Fatalf("error kind = %q, want %q", kind, KindRateSelectNotFound)
	}
}

func TestParseRateCatalogEmpty(t *testing.T) {
	html := `<select name="id_tipo_tasa"><option value="zz">sin mapeo</option></select>`

	_, err := ParseRateCatalog(html)
	if kind := ErrorKind(err); kind != KindEmptyParse {
		t.Fatalf("error kind = %q, want %q", kind, KindEmptyParse)
	}
}

func TestFallbackCatalog(t *testing.T) {
	items := FallbackCatalog()
	if len(items) == 0 {
		t.Fatal("fallback catalog is empty")
	}

	seen := make(map[string]struct{})
	for _, item := range items {
		if !numericIDPattern.MatchString(item.ID) {
			t.Errorf("non-numeric id %q", item.ID)
		}
		key := item.ID + "|" + item.Label
		if _, dup := seen[key]; dup {
			t.Errorf("duplicate entry %q", key)
		}
		seen[key] = struct{}{}
	}
}
