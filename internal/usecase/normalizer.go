package usecase

import (
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pakbuy/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	punctuationRegex    = regexp.MustCompile(`[^\w\s]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// garbagePhrases are marketing fragments sellers append to listing titles.
// Removed as whole word-bounded phrases before tokenization.
var garbagePhrases = compilePhrases(
	"pta approved", "non pta", "official warranty", "1 year warranty",
	"fast shipping", "cash on delivery", "free delivery", "free shipping",
	"brand new", "box packed", "100% original", "original", "new", "sealed",
	"genuine", "hot sale", "best price", "limited time offer", "installments",
)

// compilePhrases builds word-bounded, space-tolerant patterns for phrases
func compilePhrases(phrases ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(phrases))
	for _, phrase := range phrases {
		escaped := regexp.QuoteMeta(phrase)
		escaped = strings.ReplaceAll(escaped, ` `, `\s+`)
		compiled = append(compiled, regexp.MustCompile(`\b`+escaped+`\b`))
	}
	return compiled
}

// stopWords are tokens that carry no product identity
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "is": true,
	"pack": true, "box": true, "set": true, "pcs": true, "piece": true,
	"price": true, "pakistan": true, "buy": true, "online": true,
	"sale": true, "offer": true, "discount": true, "deal": true,
}

// specRule extracts one numeric spec from a title. Pattern group 1 is the
// value; unit group 2 (if present) selects a multiplier. The matched text is
// collapsed to Canon(value) so re-normalizing a canonical title re-extracts
// the same spec.
type specRule struct {
	Key         string
	Pattern     *regexp.Regexp
	Canon       func(value float64) string
	Multipliers map[string]float64
}

// specRules are applied in order; earlier rules consume their matched text so
// "8GB RAM" is never double-counted as storage.
var specRules = []specRule{
	{
		Key:     "ram_gb",
		Pattern: regexp.MustCompile(`\b(\d+)\s*gb\s*ram\b`),
		Canon:   func(v float64) string { return fmt.Sprintf("%dgbram", int(v)) },
	},
	{
		Key:         "storage_gb",
		Pattern:     regexp.MustCompile(`\b(\d+)\s*(gb|tb)\b`),
		Canon:       func(v float64) string { return fmt.Sprintf("%dgb", int(v)) },
		Multipliers: map[string]float64{"gb": 1, "tb": 1024},
	},
	{
		Key:     "battery_mah",
		Pattern: regexp.MustCompile(`\b(\d+)\s*mah\b`),
		Canon:   func(v float64) string { return fmt.Sprintf("%dmah", int(v)) },
	},
	{
		Key:     "camera_mp",
		Pattern: regexp.MustCompile(`\b(\d+)\s*mp\b`),
		Canon:   func(v float64) string { return fmt.Sprintf("%dmp", int(v)) },
	},
}

// defaultBrandRules maps keyword tokens to canonical brand names.
// Keywords like "iphone" let brand extraction survive titles that omit "Apple".
var defaultBrandRules = map[string]string{
	"samsung": "samsung", "galaxy": "samsung",
	"apple": "apple", "iphone": "apple", "ipad": "apple", "macbook": "apple",
	"xiaomi": "xiaomi", "redmi": "xiaomi", "poco": "xiaomi",
	"oppo": "oppo", "vivo": "vivo", "realme": "realme",
	"infinix": "infinix", "tecno": "tecno", "itel": "itel",
	"oneplus": "oneplus", "huawei": "huawei", "honor": "honor",
	"nokia": "nokia", "motorola": "motorola", "google": "google",
	"lenovo": "lenovo", "hp": "hp", "dell": "dell", "asus": "asus",
	"acer": "acer", "sony": "sony", "lg": "lg", "haier": "haier",
	"dawlance": "dawlance", "orient": "orient", "kenwood": "kenwood",
}

// modelTokenRegex matches a token that looks like a model designator:
// it must contain at least one digit (a14, 13, s23, x100)
var modelTokenRegex = regexp.MustCompile(`^[a-z]*\d[a-z0-9]*$`)

// notModelTokens look like model designators but describe connectivity
var notModelTokens = map[string]bool{"3g": true, "4g": true, "5g": true}

// NormalizerConfig holds configuration for the normalizer
type NormalizerConfig struct {
	CanonicalCurrency string
	CurrencyRates     map[string]float64 // units of canonical currency per 1 unit
	BrandRules        map[string]string  // keyword -> brand; defaults used when nil
}

// Normalizer maps raw marketplace listings into the canonical schema.
// Pure and deterministic: no I/O, no mutation of inputs.
type Normalizer struct {
	canonicalCurrency string
	currencyRates     map[string]float64
	brandRules        map[string]string
}

// NewNormalizer creates a normalizer with the given configuration
func NewNormalizer(config NormalizerConfig) *Normalizer {
	currency := config.CanonicalCurrency
	if currency == "" {
		currency = "PKR"
	}

	brandRules := config.BrandRules
	if brandRules == nil {
		brandRules = defaultBrandRules
	}

	return &Normalizer{
		canonicalCurrency: currency,
		currencyRates:     config.CurrencyRates,
		brandRules:        brandRules,
	}
}

// Normalize derives the canonical form of a raw listing.
// Returns ErrParseListing for listings that cannot identify a product
// (empty title after cleaning, non-positive price).
func (n *Normalizer) Normalize(raw *domain.RawListing) (*domain.CanonicalListing, error) {
	if raw == nil || strings.TrimSpace(raw.Title) == "" {
		return nil, fmt.Errorf("%w: empty title", domain.ErrParseListing)
	}
	if raw.Price <= 0 {
		return nil, fmt.Errorf("%w: non-positive price for %q", domain.ErrParseListing, raw.Title)
	}

	cleaned := CleanTitleLocal(raw.Title)
	cleaned, specs := extractSpecs(cleaned)

	words := tokenWords(cleaned)
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no usable tokens in %q", domain.ErrParseListing, raw.Title)
	}

	// Brand and model come from title order: the first model-looking token
	// the seller wrote, not the alphabetically first
	brand, model := n.extractBrandModel(words)

	return &domain.CanonicalListing{
		Raw:          raw,
		Tokens:       sortedSet(words),
		Brand:        brand,
		Model:        model,
		Specs:        specs,
		Price:        n.convertPrice(raw.Price, raw.Currency),
		OrigCurrency: origCurrencyTag(raw.Currency, n.canonicalCurrency),
	}, nil
}

// NormalizeAll normalizes a batch, dropping malformed listings.
// A single bad listing never stops the pipeline.
func (n *Normalizer) NormalizeAll(raws []domain.RawListing) []*domain.CanonicalListing {
	canonical := make([]*domain.CanonicalListing, 0, len(raws))
	for i := range raws {
		c, err := n.Normalize(&raws[i])
		if err != nil {
			log.Printf("[NORMALIZE] Dropping listing from %s: %v", raws[i].Source, err)
			continue
		}
		canonical = append(canonical, c)
	}
	return canonical
}

// CleanTitleLocal strips marketing garbage from a listing title.
// Local fallback for the assistant's /clean-title endpoint.
func CleanTitleLocal(title string) string {
	cleaned := strings.ToLower(title)
	for _, phrase := range garbagePhrases {
		cleaned = phrase.ReplaceAllString(cleaned, " ")
	}
	cleaned = multipleSpacesRegex.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// extractSpecs pulls numeric specs out of a cleaned title. Each rule's
// matches are replaced with a canonical token; when a rule matches more than
// once the largest value wins, which keeps extraction independent of token
// order (and therefore idempotent).
func extractSpecs(title string) (string, map[string]float64) {
	specs := make(map[string]float64)

	for _, rule := range specRules {
		matches := rule.Pattern.FindAllStringSubmatch(title, -1)
		if len(matches) == 0 {
			continue
		}

		best := 0.0
		for _, m := range matches {
			value, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if rule.Multipliers != nil && len(m) > 2 {
				if mult, ok := rule.Multipliers[m[2]]; ok {
					value *= mult
				}
			}
			if value > best {
				best = value
			}
		}
		if best <= 0 {
			continue
		}

		specs[rule.Key] = best
		title = rule.Pattern.ReplaceAllStringFunc(title, func(m string) string {
			sub := rule.Pattern.FindStringSubmatch(m)
			value, _ := strconv.ParseFloat(sub[1], 64)
			if rule.Multipliers != nil && len(sub) > 2 {
				if mult, ok := rule.Multipliers[sub[2]]; ok {
					value *= mult
				}
			}
			return " " + rule.Canon(value) + " "
		})
	}

	if len(specs) == 0 {
		specs = nil
	}
	return title, specs
}

// tokenWords splits a cleaned title into usable tokens in title order.
// Drops punctuation, single-character tokens, and stop words; keeps numeric
// tokens because they often carry model identity ("iphone 13").
func tokenWords(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")
	fields := strings.Fields(cleaned)

	words := make([]string, 0, len(fields))
	for _, word := range fields {
		if len(word) <= 1 {
			continue
		}
		if stopWords[word] {
			continue
		}
		words = append(words, word)
	}
	return words
}

// sortedSet deduplicates and sorts tokens into the canonical comparison form
func sortedSet(words []string) []string {
	set := make(map[string]bool, len(words))
	for _, word := range words {
		set[word] = true
	}

	tokens := make([]string, 0, len(set))
	for token := range set {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// extractBrandModel finds the brand via the keyword rule table and picks the
// first model-looking token that is not itself a brand keyword or spec token.
// tokens must be in title order so an incidental number later in the title
// ("2023 edition") cannot shadow the real model designator.
func (n *Normalizer) extractBrandModel(tokens []string) (string, string) {
	brand := ""
	for _, token := range tokens {
		if b, ok := n.brandRules[token]; ok {
			brand = b
			break
		}
	}

	model := ""
	for _, token := range tokens {
		if _, isBrand := n.brandRules[token]; isBrand {
			continue
		}
		if isSpecToken(token) || notModelTokens[token] {
			continue
		}
		if modelTokenRegex.MatchString(token) {
			model = token
			break
		}
	}

	return brand, model
}

// isSpecToken reports whether a token is a canonical spec token ("128gb")
func isSpecToken(token string) bool {
	for _, rule := range specRules {
		if rule.Pattern.MatchString(token) {
			return true
		}
	}
	return false
}

// convertPrice converts a price to the canonical currency using the static
// rate table. Unknown currencies are passed through unchanged.
func (n *Normalizer) convertPrice(price float64, currency string) float64 {
	if currency == "" || strings.EqualFold(currency, n.canonicalCurrency) {
		return price
	}
	rate, ok := n.currencyRates[strings.ToUpper(currency)]
	if !ok {
		log.Printf("[NORMALIZE] No rate for currency %q, keeping price as-is", currency)
		return price
	}
	return price * rate
}

// origCurrencyTag preserves the original currency tag, defaulting to canonical
func origCurrencyTag(currency, canonical string) string {
	if currency == "" {
		return canonical
	}
	return strings.ToUpper(currency)
}
