package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/PentesterFlow/storescrape/internal/dedup"
)

// Price strategies, reported as PriceCandidate.Strategy and Details.PriceSource.
const (
	StrategySelector   = "selector"
	StrategyOfferCard  = "offer-card"
	StrategyPageScan   = "page-scan"
	StrategyRescan     = "rescan"
	StrategyMeta       = TierMeta
	StrategyStructured = TierStructured
)

// maxPriceLen bounds candidate text; longer fragments are prose, not prices.
const maxPriceLen = 50

func priceSized(text string) bool {
	return text != "" && utf8.RuneCountInString(text) < maxPriceLen
}

const currencyCodes = `USD|EUR|GBP|TRY|RSD|JPY|INR|CAD|AUD|PLN|CHF|SEK|NOK|DKK|CZK|HUF|BRL|MXN|RUB|UAH|ZAR|KRW|CNY|HKD|SGD|NZD|ILS|SAR|AED`

var (
	pricePattern = regexp.MustCompile(
		`(?i:[₺$€£¥₹]\s*\d+[.,]?\d*|\d+[.,]\d+\s*[₺$€£¥₹]|TL\s*\d+[.,]?\d*|\d+[.,]?\d*\s*TL)` +
			`|\b(?:` + currencyCodes + `)\s*\d+(?:[.,]\d+)*|\d+(?:[.,]\d+)*\s*(?:` + currencyCodes + `)\b`)
	decimalPattern = regexp.MustCompile(`\d+[.,]\d+`)
	numberPattern  = regexp.MustCompile(`\d+(?:[.,]\d+)*`)
	codePattern    = regexp.MustCompile(`\b(` + currencyCodes + `)\b`)
	liraPattern    = regexp.MustCompile(`(?i)(^|[^a-z])tl([^a-z]|$)`)

	freeKeywords = []string{"free", "ücretsiz", "bedava"}

	symbolCurrency = map[string]string{
		"$": "USD",
		"€": "EUR",
		"£": "GBP",
		"¥": "JPY",
		"₹": "INR",
		"₺": "TRY",
	}
)

// priceSelectors run narrow to broad over offer widgets and price badges.
var priceSelectors = compileAll(
	`div.psw-pdp-card-anchor label div.psw-l-anchor.psw-l-stack-left span span span span`,
	`div.psw-pdp-card-anchor label div.psw-l-anchor span span span`,
	`label div.psw-l-anchor.psw-l-stack-left.psw-fill-x span span span`,
	`label[class*="psw"] div[class*="psw-l-anchor"] span span span`,
	`label > div.psw-l-anchor > span > span > span`,
	`div.psw-pdp-card-anchor label span span span`,
	`label span span span`,
	`label span[class*="psw"] span span`,
	`[data-qa="mfeCtaMain#offer0#finalPrice"]`,
	`[data-qa="mfeCtaMain#offer0#finalPrice"] span`,
	`[data-qa*="finalPrice"]`,
	`[data-qa*="price"]`,
	`.price-display__price`,
	`[class*="price-display"]`,
	`[class*="final-price"]`,
	`span[class*="price"]`,
	`[aria-label*="price"], [aria-label*="Price"]`,
	`button[class*="price"]`,
	`[class*="cta"] [class*="price"]`,
	`label div[class*="psw-l-anchor"] span`,
	`label[class*="psw"] span span`,
	`.psw-pdp-card-anchor label span`,
	`div[class*="psw-pdp"] label span span span`,
)

var (
	offerCardSel      = cascadia.MustCompile(`div.psw-pdp-card-anchor, div[class*="pdp-card"]`)
	offerLabelSel     = cascadia.MustCompile(`label`)
	offerLabelTextSel = cascadia.MustCompile(`span span span, span span span span`)
	pageScanSel       = cascadia.MustCompile(`span, div, button, p, label`)
	rescanLabelSel    = cascadia.MustCompile(`div.psw-pdp-card-anchor label, label[class*="psw"]`)
)

var (
	selectorNoise  = []string{"confirm", "select", "choose"}
	offerCardNoise = []string{"confirm", "select"}
	pageScanNoise  = []string{"confirm", "rating", "download", "size"}
	rescanNoise    = []string{"free", "confirm"}
)

func compileAll(queries ...string) []cascadia.Selector {
	out := make([]cascadia.Selector, len(queries))
	for i, q := range queries {
		out[i] = cascadia.MustCompile(q)
	}
	return out
}

// PriceCandidate is one price-shaped fragment found on the page.
type PriceCandidate struct {
	Raw      string
	Strategy string
	Value    *float64
	Currency string
	Free     bool
	Noise    bool
}

// Amount is the parsed value, or 0 when nothing parsed.
func (c PriceCandidate) Amount() float64 {
	if c.Value == nil {
		return 0
	}
	return *c.Value
}

// Paid reports whether c is a positive, non-free price.
func (c PriceCandidate) Paid() bool {
	return !c.Free && c.Amount() > 0
}

func newCandidate(raw, strategy string, noise []string) PriceCandidate {
	value, currency := ParsePrice(raw)
	return PriceCandidate{
		Raw:      raw,
		Strategy: strategy,
		Value:    value,
		Currency: currency,
		Free:     IsFree(raw),
		Noise:    containsAny(raw, noise),
	}
}

// CollectPrices gathers price-shaped fragments in discovery order: targeted
// selectors, then labels inside offer cards. Only when both come up empty
// is every textual element on the page scanned.
func CollectPrices(doc *Document) []PriceCandidate {
	var out []PriceCandidate

	for _, sel := range priceSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := textOf(s)
			if !priceSized(text) {
				return
			}
			if pricePattern.MatchString(text) || decimalPattern.MatchString(text) || isFreeLabel(text) {
				out = append(out, newCandidate(text, StrategySelector, selectorNoise))
			}
		})
	}

	doc.Find(offerCardSel).Each(func(_ int, card *goquery.Selection) {
		card.FindMatcher(offerLabelSel).Each(func(_ int, label *goquery.Selection) {
			label.FindMatcher(offerLabelTextSel).Each(func(_ int, s *goquery.Selection) {
				text := textOf(s)
				if priceSized(text) && pricePattern.MatchString(text) {
					out = append(out, newCandidate(text, StrategyOfferCard, offerCardNoise))
				}
			})
		})
	})

	if len(FilterNoise(out)) > 0 {
		return out
	}

	doc.Find(pageScanSel).Each(func(_ int, s *goquery.Selection) {
		text := textOf(s)
		if priceSized(text) && pricePattern.MatchString(text) {
			out = append(out, newCandidate(text, StrategyPageScan, pageScanNoise))
		}
	})
	return out
}

// FilterNoise drops candidates flagged as action labels.
func FilterNoise(candidates []PriceCandidate) []PriceCandidate {
	out := make([]PriceCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Noise {
			out = append(out, c)
		}
	}
	return out
}

// DedupPrices keeps the first candidate for each raw string.
func DedupPrices(candidates []PriceCandidate) []PriceCandidate {
	return dedup.By(candidates, func(c PriceCandidate) string { return c.Raw })
}

// RawPrices returns the raw strings of candidates.
func RawPrices(candidates []PriceCandidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Raw
	}
	return out
}

// SelectPrice picks the highest paid candidate; with none paid it falls back
// to the first candidate. ok is false only for an empty slice.
func SelectPrice(candidates []PriceCandidate) (PriceCandidate, bool) {
	var paid []PriceCandidate
	for _, c := range candidates {
		if c.Paid() {
			paid = append(paid, c)
		}
	}
	if len(paid) > 0 {
		sort.SliceStable(paid, func(i, j int) bool {
			return paid[i].Amount() > paid[j].Amount()
		})
		return paid[0], true
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return PriceCandidate{}, false
}

// ParsePrice reads the first number in raw and the currency it is marked
// with. A separator followed by exactly three digits groups thousands; a
// trailing group of other width is the fraction.
func ParsePrice(raw string) (*float64, string) {
	currency := currencyOf(raw)

	num := numberPattern.FindString(raw)
	if num == "" {
		return nil, currency
	}

	groups := strings.FieldsFunc(num, func(r rune) bool { return r == '.' || r == ',' })
	whole := groups[0]
	fraction := ""
	if n := len(groups); n > 1 {
		last := groups[n-1]
		if len(last) == 3 {
			whole = strings.Join(groups, "")
		} else {
			whole = strings.Join(groups[:n-1], "")
			fraction = last
		}
	}

	text := whole
	if fraction != "" {
		text += "." + fraction
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, currency
	}
	return &v, currency
}

func currencyOf(raw string) string {
	for _, r := range raw {
		if code, ok := symbolCurrency[string(r)]; ok {
			return code
		}
	}
	if m := codePattern.FindString(raw); m != "" {
		return m
	}
	if liraPattern.MatchString(raw) {
		return "TRY"
	}
	return ""
}

// IsFree reports whether raw carries a free-equivalent keyword.
func IsFree(raw string) bool {
	return containsAny(raw, freeKeywords)
}

// isFreeLabel accepts a short badge that is nothing but a free keyword.
func isFreeLabel(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range freeKeywords {
		if lower == k {
			return true
		}
	}
	return false
}

func containsAny(s string, words []string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// RescanPrices is the narrow second look: price matches inside offer labels,
// or when none, inside the page's visible text. Free matches are dropped.
func RescanPrices(doc *Document) []string {
	var found []string

	doc.Find(rescanLabelSel).Each(func(_ int, s *goquery.Selection) {
		for _, m := range pricePattern.FindAllString(s.Text(), -1) {
			m = strings.TrimSpace(m)
			if m != "" && !containsAny(m, rescanNoise) {
				found = append(found, m)
			}
		}
	})

	if len(found) == 0 {
		for _, m := range pricePattern.FindAllString(doc.BodyText(), -1) {
			m = strings.TrimSpace(m)
			if m != "" && !IsFree(m) && numberPattern.MatchString(m) {
				found = append(found, m)
			}
		}
	}
	return dedup.Strings(found)
}

// fallbackPrice reads the price from metadata, then from the structured
// offer, prefixing the currency code when one is given.
func fallbackPrice(doc *Document) (string, string, bool) {
	if v, ok := firstOf(doc, priceMeta); ok {
		return v, StrategyMeta, true
	}

	data, ok := doc.Structured()
	if !ok {
		return "", "", false
	}
	for _, offer := range []string{"offers", "offers.0"} {
		amount, ok := scalar(data.Get(offer + ".price"))
		if !ok {
			continue
		}
		if currency, ok := scalar(data.Get(offer + ".priceCurrency")); ok {
			return currency + " " + amount, StrategyStructured, true
		}
		return amount, StrategyStructured, true
	}
	return "", "", false
}
