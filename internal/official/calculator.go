package official

import (
	"context"
	"math"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/estudiomv/webjuridico/pkg/textutil"
)

// SourceOfficialEngine stamps results computed by the upstream calculator.
const SourceOfficialEngine = "official_engine"

// agreedRateTypeID is the rate type whose percentage the parties agreed by
// contract; it is the only one that takes a tasa_pactada value.
const agreedRateTypeID = "6"

// CalculationRequest is the caller's input for one calculation.
// Dates accept yyyy-mm-dd or dd/mm/yyyy and are converted to the
// upstream's dd-mm-yyyy wire format during validation.
type CalculationRequest struct {
	Amount     float64  `json:"importe"`
	RateTypeID string   `json:"idTipoTasa"`
	FromDate   string   `json:"desde"`
	ToDate     string   `json:"hasta"`
	AgreedRate *float64 `json:"tasaPactada"`
}

// Calculator runs the full calculate flow: validate, open a fresh session,
// replay the form, parse the result. Every call stands alone; no session
// state survives between calls and no step is retried.
type Calculator struct {
	client *Client
	log    *zap.Logger
}

// NewCalculator creates a calculation orchestrator over the given client.
func NewCalculator(client *Client, log *zap.Logger) *Calculator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Calculator{client: client, log: log.Named("calculator")}
}

// wireFields is the validated, wire-formatted submission input.
type wireFields struct {
	amount     string
	rateTypeID string
	fromDate   string
	toDate     string
	agreedRate string
}

// validate checks the request and converts it to wire format. Validation
// failures are caller-input errors and are never retried.
func validate(req CalculationRequest) (*wireFields, error) {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return nil, NewError(KindInvalidAmount)
	}
	if !numericIDPattern.MatchString(req.RateTypeID) {
		return nil, NewError(KindInvalidRateType)
	}

	from := textutil.ToWireDate(req.FromDate)
	to := textutil.ToWireDate(req.ToDate)
	if from == "" || to == "" {
		return nil, NewError(KindInvalidDate)
	}

	w := &wireFields{
		amount:     textutil.FormatOfficialNumber(req.Amount, 2),
		rateTypeID: req.RateTypeID,
		fromDate:   from,
		toDate:     to,
	}

	if req.RateTypeID == agreedRateTypeID {
		if req.AgreedRate == nil || math.IsNaN(*req.AgreedRate) || math.IsInf(*req.AgreedRate, 0) || *req.AgreedRate <= 0 {
			return nil, NewError(KindInvalidAgreedRate)
		}
		w.agreedRate = textutil.FormatOfficialNumber(*req.AgreedRate, 4)
	}

	return w, nil
}

// buildForm assembles the url-encoded body. The legacy ScriptCase app
// validates field presence, so every hidden field is sent even when blank.
func buildForm(sess *SessionContext, w *wireFields) string {
	form := url.Values{}
	form.Set("nm_form_submit", "1")
	form.Set("nmgp_idioma_novo", "")
	form.Set("nmgp_schema_f", "")
	form.Set("nmgp_url_saida", "")
	form.Set("bok", "OK")
	form.Set("nmgp_opcao", "alterar")
	form.Set("nmgp_ancora", "")
	form.Set("nmgp_num_form", "")
	form.Set("nmgp_parms", "")
	form.Set("script_case_init", sess.ScriptCaseInit)
	form.Set("NM_cancel_return_new", "")
	form.Set("csrf_token", sess.CSRFToken)
	form.Set("_sc_force_mobile", "")
	form.Set("importe", w.amount)
	form.Set("id_tipo_tasa", w.rateTypeID)
	form.Set("desde", w.fromDate)
	form.Set("hasta", w.toDate)
	form.Set("tasa_pactada", w.agreedRate)
	form.Set("resultados", "")
	return form.Encode()
}

// Calculate performs one official calculation.
func (c *Calculator) Calculate(ctx context.Context, req CalculationRequest) (*CalculationResult, error) {
	fields, err := validate(req)
	if err != nil {
		return nil, err
	}

	page, err := c.client.FetchFormPage(ctx)
	if err != nil {
		c.log.Warn("form page fetch failed", zap.Error(err))
		return nil, err
	}

	sess, err := ExtractSession(page.Body, page.Header)
	if err != nil {
		c.log.Warn("session extraction failed", zap.Error(err))
		return nil, err
	}

	resp, err := c.client.SubmitForm(ctx, buildForm(sess, fields), sess.CookieHeader)
	if err != nil {
		c.log.Warn("form submission failed", zap.Error(err))
		return nil, err
	}

	text, parsed, err := ParseCalculationResult(resp.Body)
	if err != nil {
		c.log.Warn("result parse failed", zap.Error(err))
		return nil, err
	}

	c.log.Debug("calculation complete",
		zap.String("rateType", req.RateTypeID),
		zap.String("from", fields.fromDate),
		zap.String("to", fields.toDate))

	return &CalculationResult{
		Text:       text,
		Parsed:     parsed,
		Source:     SourceOfficialEngine,
		ComputedAt: time.Now().UTC(),
	}, nil
}
