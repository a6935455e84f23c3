package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ingestion-pipeline/internal/domain/model"
)

// Payload keys shared by the built-in rules.
const (
	KeyArticleName   = "article_name"
	KeyBarcode       = "barcode"
	KeyMRP           = "mrp"
	KeyRSP           = "rsp"
	KeyPackSizeValue = "pack_size_value"
	KeyPackSizeUnit  = "pack_size_unit"
)

// ---- required_fields ----

type requiredFields struct{}

func (requiredFields) Name() string { return "required_fields" }

func (requiredFields) Evaluate(_ *model.Record, payload map[string]string) model.RuleResult {
	var missing []string
	for _, k := range []string{KeyArticleName, KeyBarcode} {
		if strings.TrimSpace(payload[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return model.RuleResult{
			Verdict: model.RuleVerdictFail,
			Reason:  "missing required fields: " + strings.Join(missing, ", "),
		}
	}
	return model.RuleResult{Verdict: model.RuleVerdictPass, Confidence: 1.0, Reason: "all required fields present"}
}

// ---- normalize_name ----

var whitespaceRe = regexp.MustCompile(`\s+`)

type normalizeName struct{}

func (normalizeName) Name() string { return "normalize_name" }

func (normalizeName) Evaluate(_ *model.Record, payload map[string]string) model.RuleResult {
	raw := payload[KeyArticleName]
	norm := strings.ToUpper(whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " "))
	res := model.RuleResult{Verdict: model.RuleVerdictPass, Confidence: 1.0, Reason: "name already normalized"}
	if norm != raw {
		res.Delta = map[string]string{KeyArticleName: norm}
		res.Reason = "collapsed whitespace and uppercased name"
	}
	return res
}

// ---- normalize_barcode ----

var digitsRe = regexp.MustCompile(`^\d+$`)

type normalizeBarcode struct{}

func (normalizeBarcode) Name() string { return "normalize_barcode" }

func (normalizeBarcode) Evaluate(_ *model.Record, payload map[string]string) model.RuleResult {
	raw := payload[KeyBarcode]
	norm := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	res := model.RuleResult{Verdict: model.RuleVerdictPass, Confidence: 1.0, Reason: "barcode normalized"}
	if norm != raw {
		res.Delta = map[string]string{KeyBarcode: norm}
	}
	if norm != "" && !digitsRe.MatchString(norm) {
		res.Verdict = model.RuleVerdictWarn
		res.Confidence = 0.5
		res.Reason = "barcode contains non-numeric characters"
	}
	return res
}

// ---- parse_pack_size ----

var packSizeRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(KGS|KG|GMS|GM|GRAMS|GRAM|G|LTRS|LTR|L|ML|PCS|PC|PKT|PACK)\b`)

var unitMap = map[string]string{
	"KGS": "KG", "KG": "KG",
	"G": "GM", "GM": "GM", "GMS": "GM", "GRAM": "GM", "GRAMS": "GM",
	"L": "LTR", "LTR": "LTR", "LTRS": "LTR",
	"ML":   "ML",
	"PC":   "PCS",
	"PCS":  "PCS",
	"PACK": "PKT",
	"PKT":  "PKT",
}

type parsePackSize struct{}

func (parsePackSize) Name() string { return "parse_pack_size" }

func (parsePackSize) Evaluate(_ *model.Record, payload map[string]string) model.RuleResult {
	name := payload[KeyArticleName]
	m := packSizeRe.FindStringSubmatch(name)
	if m == nil {
		return model.RuleResult{
			Verdict:    model.RuleVerdictWarn,
			Confidence: 0.6,
			Reason:     "no pack size found in article name",
		}
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return model.RuleResult{
			Verdict:    model.RuleVerdictWarn,
			Confidence: 0.6,
			Reason:     "unparseable pack size value: " + m[1],
		}
	}
	unitRaw := strings.ToUpper(m[2])
	unit, ok := unitMap[unitRaw]
	if !ok {
		unit = unitRaw
	}
	return model.RuleResult{
		Verdict:    model.RuleVerdictPass,
		Confidence: 1.0,
		Delta: map[string]string{
			KeyPackSizeValue: strconv.FormatFloat(value, 'f', -1, 64),
			KeyPackSizeUnit:  unit,
		},
		Reason: fmt.Sprintf("pack size %s %s", m[1], unit),
	}
}

// ---- price_sanity ----

type priceSanity struct{}

func (priceSanity) Name() string { return "price_sanity" }

func (priceSanity) Evaluate(_ *model.Record, payload map[string]string) model.RuleResult {
	mrpRaw, hasMRP := payload[KeyMRP]
	rspRaw, hasRSP := payload[KeyRSP]
	if !hasMRP && !hasRSP {
		return model.RuleResult{Verdict: model.RuleVerdictPass, Confidence: 1.0, Reason: "no prices to check"}
	}

	var mrp, rsp float64
	var err error
	if hasMRP {
		if mrp, err = strconv.ParseFloat(strings.TrimSpace(mrpRaw), 64); err != nil || mrp <= 0 {
			return model.RuleResult{Verdict: model.RuleVerdictFail, Reason: "mrp is not a positive number: " + mrpRaw}
		}
	}
	if hasRSP {
		if rsp, err = strconv.ParseFloat(strings.TrimSpace(rspRaw), 64); err != nil || rsp <= 0 {
			return model.RuleResult{Verdict: model.RuleVerdictFail, Reason: "rsp is not a positive number: " + rspRaw}
		}
	}
	if hasMRP && hasRSP && rsp > mrp {
		return model.RuleResult{
			Verdict: model.RuleVerdictFail,
			Reason:  fmt.Sprintf("rsp %.2f exceeds mrp %.2f", rsp, mrp),
		}
	}
	return model.RuleResult{Verdict: model.RuleVerdictPass, Confidence: 1.0, Reason: "prices consistent"}
}

// ---- timestamp_sanity ----

type timestampSanity struct {
	minDate time.Time
	maxSkew time.Duration
	now     func() time.Time
}

func (timestampSanity) Name() string { return "timestamp_sanity" }

func (r timestampSanity) Evaluate(rec *model.Record, _ map[string]string) model.RuleResult {
	switch {
	case rec.ReceivedAt.IsZero():
		return model.RuleResult{Verdict: model.RuleVerdictFail, Reason: "record has no arrival timestamp"}
	case rec.ReceivedAt.After(r.now().Add(r.maxSkew)):
		return model.RuleResult{
			Verdict: model.RuleVerdictFail,
			Reason:  fmt.Sprintf("arrival timestamp is more than %s in the future", r.maxSkew),
		}
	case rec.ReceivedAt.Before(r.minDate):
		return model.RuleResult{
			Verdict:    model.RuleVerdictWarn,
			Confidence: 0.5,
			Reason:     "arrival timestamp predates " + r.minDate.Format("2006-01-02"),
		}
	}
	return model.RuleResult{Verdict: model.RuleVerdictPass, Confidence: 1.0, Reason: "arrival timestamp plausible"}
}
