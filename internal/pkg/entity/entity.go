// Package entity extracts payment-domain entities (merchants, gateways,
// banks, technical terms) and classifies query domains. The vocabulary is
// maintained alongside the corpus and shared by the router, the retriever's
// priority boosts and the semantic validator.
package entity

import (
	"regexp"
	"strings"
)

// Fixed vocabularies. Extraction is word-boundary substring match,
// case-insensitive.
var (
	Merchants = []string{"snapdeal", "firstcry", "mobikwik", "citymall", "flipkart", "amazon"}
	Gateways  = []string{"pinelabs", "payu", "razorpay", "checkout", "stripe"}
	Banks     = []string{"hdfc", "axis", "icici", "sbi", "kotak"}

	// TechnicalTerms are exact error/protocol tokens that identify an
	// incident theme independent of merchant or gateway.
	TechnicalTerms = []string{
		"messagenotrecognized", "pkcs15", "rsa", "ssl", "tls",
		"internal_server_error", "timeout", "webhook", "callback",
		"tokenization", "encryption", "decryption", "signature",
		"authentication", "authorization", "validation",
	}
)

// domainAnchors are the corpus noun phrases that place a query inside the
// payment-incident domain. A query containing none of these and no known
// entity is out of domain.
var domainAnchors = []string{
	"payment", "upi", "gateway", "transaction", "card", "wallet", "bank",
	"refund", "settlement", "webhook", "api", "integration", "timeout",
	"error", "failure", "processing", "authorization", "authentication",
	"merchant", "pinelabs", "payu", "razorpay", "hdfc", "axis", "icici",
	"sbi", "kotak", "visa", "mastercard", "mobikwik", "paytm", "phonepe",
	"gpay", "amazonpay",
}

// incidentIDRegexes probe for ticket identifiers anywhere in a sentence.
// First match wins; the extracted id is uppercased.
var incidentIDRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(JSP-\d+)\b`),
	regexp.MustCompile(`(?i)\b(EUL-\d+)\b`),
	regexp.MustCompile(`(?i)\b(JIRA-\d+)\b`),
	regexp.MustCompile(`(?i)\b(INC-\d+)\b`),
	regexp.MustCompile(`(?i)\b(SLACK-\d+-\d+)\b`),
	regexp.MustCompile(`(?i)\b(TICKET-\d+)\b`),
	regexp.MustCompile(`(?i)\b(BUG-\d+)\b`),
	regexp.MustCompile(`(?i)\b(ISSUE-\d+)\b`),
}

// ExtractIncidentID returns the first incident id found in the text, or "".
func ExtractIncidentID(text string) string {
	for _, re := range incidentIDRegexes {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

// Entities is the set of entities extracted from one text.
type Entities struct {
	Merchant string
	Gateway  string
	Bank     string
	Terms    []string
}

// All returns every extracted entity as a flat lowercase set.
func (e Entities) All() []string {
	out := make([]string, 0, len(e.Terms)+3)
	if e.Merchant != "" {
		out = append(out, e.Merchant)
	}
	if e.Gateway != "" {
		out = append(out, e.Gateway)
	}
	if e.Bank != "" {
		out = append(out, e.Bank)
	}
	out = append(out, e.Terms...)
	return out
}

// IsEmpty reports whether no entity was found.
func (e Entities) IsEmpty() bool {
	return e.Merchant == "" && e.Gateway == "" && e.Bank == "" && len(e.Terms) == 0
}

// Extract pulls merchants, gateways, banks and technical terms out of a
// text. First vocabulary hit wins per kind.
func Extract(text string) Entities {
	lower := strings.ToLower(text)
	var e Entities
	e.Merchant = firstMatch(lower, Merchants)
	e.Gateway = firstMatch(lower, Gateways)
	e.Bank = firstMatch(lower, Banks)
	for _, term := range TechnicalTerms {
		if containsWord(lower, term) {
			e.Terms = append(e.Terms, term)
		}
	}
	return e
}

func firstMatch(lower string, vocab []string) string {
	for _, v := range vocab {
		if containsWord(lower, v) {
			return v
		}
	}
	return ""
}

// containsWord is a word-boundary substring match over lowercased text.
func containsWord(lower, word string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordRune(rune(lower[start-1]))
		afterOK := end == len(lower) || !isWordRune(rune(lower[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// InDomain reports whether the text contains at least one domain anchor or
// known entity.
func InDomain(text string) bool {
	lower := strings.ToLower(text)
	for _, anchor := range domainAnchors {
		if containsWord(lower, anchor) {
			return true
		}
	}
	return !Extract(text).IsEmpty()
}

// Domain is a coarse incident theme used for validator compatibility checks.
type Domain string

const (
	DomainWallet  Domain = "wallet"
	DomainCard    Domain = "card"
	DomainUPI     Domain = "upi"
	DomainWebhook Domain = "webhook"
	DomainGateway Domain = "gateway"
	DomainGeneral Domain = "general"
)

// domainTerms maps each theme to its indicator vocabulary. Classification
// picks the theme with the most hits; ties and no-hits fall back to general.
var domainTerms = map[Domain][]string{
	DomainWallet:  {"wallet", "mobikwik", "paytm", "phonepe", "gpay", "amazonpay", "balance"},
	DomainCard:    {"card", "visa", "mastercard", "tokenization", "cvv", "expiry"},
	DomainUPI:     {"upi", "vpa", "collect", "intent", "npci"},
	DomainWebhook: {"webhook", "callback", "notification", "retry"},
	DomainGateway: {"gateway", "pinelabs", "payu", "razorpay", "checkout", "stripe", "acquirer"},
}

// ClassifyDomain assigns the dominant theme of a text.
func ClassifyDomain(text string) Domain {
	lower := strings.ToLower(text)
	best := DomainGeneral
	bestHits := 0
	// Iterate in a fixed order for determinism.
	for _, d := range []Domain{DomainWallet, DomainCard, DomainUPI, DomainWebhook, DomainGateway} {
		hits := 0
		for _, t := range domainTerms[d] {
			if containsWord(lower, t) {
				hits++
			}
		}
		if hits > bestHits {
			best = d
			bestHits = hits
		}
	}
	return best
}

// Compatibility scores two domains: 1.0 identical, 0.5 adjacent (anything
// against gateway or general), 0 unrelated.
func Compatibility(a, b Domain) float64 {
	if a == b {
		return 1.0
	}
	if a == DomainGateway || b == DomainGateway || a == DomainGeneral || b == DomainGeneral {
		return 0.5
	}
	return 0
}

// troubleshootingVerbs signal that a query is asking how to fix something.
var troubleshootingVerbs = []string{"failed", "failing", "fails", "stuck", "error", "timeout", "blocked", "broken", "not working"}

// HasTroubleshootingIntent reports whether the query expresses a fix-me
// intent, used for validator intent alignment.
func HasTroubleshootingIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, v := range troubleshootingVerbs {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}
