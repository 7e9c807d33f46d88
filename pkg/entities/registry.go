// Package entities classifies monitored financial institutions into a fixed
// type and derives search/stream rules with type-specific risk keywords.
package entities

import (
	"fmt"
	"sort"
	"strings"
)

// Type is the closed set of institution categories.
type Type string

const (
	TypeTraditionalBank Type = "traditional_bank"
	TypeNeobank         Type = "neobank"
	TypeCryptoExchange  Type = "crypto_exchange"
	TypeCryptoWallet    Type = "crypto_wallet"
	TypeTradingPlatform Type = "trading_platform"
	TypePaymentApp      Type = "payment_app"
	TypeUnknown         Type = "unknown"
)

// registry maps known institution names (lower-cased) to their type. The map
// is immutable after init; lookups never mutate it.
var registry = map[string]Type{
	// Traditional banks
	"chase":           TypeTraditionalBank,
	"jpmorgan":        TypeTraditionalBank,
	"bank of america": TypeTraditionalBank,
	"wells fargo":     TypeTraditionalBank,
	"citibank":        TypeTraditionalBank,
	"capital one":     TypeTraditionalBank,
	"us bank":         TypeTraditionalBank,
	"pnc":             TypeTraditionalBank,
	"truist":          TypeTraditionalBank,

	// Neobanks
	"chime":   TypeNeobank,
	"sofi":    TypeNeobank,
	"revolut": TypeNeobank,
	"current": TypeNeobank,
	"varo":    TypeNeobank,

	// Crypto exchanges
	"coinbase":   TypeCryptoExchange,
	"binance":    TypeCryptoExchange,
	"kraken":     TypeCryptoExchange,
	"gemini":     TypeCryptoExchange,
	"crypto.com": TypeCryptoExchange,
	"bitstamp":   TypeCryptoExchange,
	"okx":        TypeCryptoExchange,

	// Crypto wallets
	"metamask":     TypeCryptoWallet,
	"phantom":      TypeCryptoWallet,
	"ledger":       TypeCryptoWallet,
	"trust wallet": TypeCryptoWallet,
	"exodus":       TypeCryptoWallet,

	// Trading platforms (brokerages and robo-advisors)
	"robinhood":           TypeTradingPlatform,
	"webull":              TypeTradingPlatform,
	"e*trade":             TypeTradingPlatform,
	"etrade":              TypeTradingPlatform,
	"fidelity":            TypeTradingPlatform,
	"charles schwab":      TypeTradingPlatform,
	"td ameritrade":       TypeTradingPlatform,
	"interactive brokers": TypeTradingPlatform,
	"wealthfront":         TypeTradingPlatform,
	"betterment":          TypeTradingPlatform,
	"acorns":              TypeTradingPlatform,

	// Payment apps
	"venmo":    TypePaymentApp,
	"cash app": TypePaymentApp,
	"paypal":   TypePaymentApp,
	"zelle":    TypePaymentApp,
	"wise":     TypePaymentApp,
}

// Heuristic keyword lists, checked in fixed priority order when no registry
// entry matches: crypto first, then banking, trading, payments.
var heuristics = []struct {
	entityType Type
	terms      []string
}{
	{TypeCryptoExchange, []string{"crypto", "exchange", "coin", "token", "defi"}},
	{TypeCryptoWallet, []string{"wallet"}},
	{TypeTraditionalBank, []string{"bank", "credit union", "savings"}},
	{TypeTradingPlatform, []string{"trading", "broker", "invest", "securities"}},
	{TypePaymentApp, []string{"pay", "transfer", "remit"}},
}

// Classify maps a free-text institution name to a Type. Resolution order:
// exact case-insensitive lookup, substring match in either direction with
// longest-registry-key-wins tie-break, then keyword heuristics, then unknown.
// The same name always classifies to the same type.
func Classify(name string) Type {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return TypeUnknown
	}

	if t, ok := registry[needle]; ok {
		return t
	}

	// Substring pass. Overlapping registry keys are resolved by preferring
	// the longest key, then lexicographic order, so classification does not
	// depend on map iteration order.
	var bestKey string
	var bestType Type
	for key, t := range registry {
		if !strings.Contains(needle, key) && !strings.Contains(key, needle) {
			continue
		}
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
			bestKey, bestType = key, t
		}
	}
	if bestKey != "" {
		return bestType
	}

	for _, h := range heuristics {
		for _, term := range h.terms {
			if strings.Contains(needle, term) {
				return h.entityType
			}
		}
	}

	return TypeUnknown
}

// KnownInstitutions returns the registry contents sorted by name, for the
// control surface's institution listing.
func KnownInstitutions() []Institution {
	out := make([]Institution, 0, len(registry))
	for name, t := range registry {
		out = append(out, Institution{Name: name, Type: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Institution is one registry entry.
type Institution struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Entity is a monitored institution with its derived rule. Created when the
// caller registers an institution; the rule is regenerated whenever the
// keyword set changes.
type Entity struct {
	Name       string   `json:"name"`
	Type       Type     `json:"type"`
	Keywords   []string `json:"risk_keywords"`
	SearchRule string   `json:"search_rule"`
}

// NewEntity classifies a name and derives its keywords and rule.
func NewEntity(name string) Entity {
	t := Classify(name)
	return Entity{
		Name:       name,
		Type:       t,
		Keywords:   RiskKeywords(t),
		SearchRule: BuildQuery(name, t),
	}
}

// generalKeywords apply to every institution type.
var generalKeywords = []string{
	"outage", "down", "not working", "can't access", "can't login",
	"fraud", "scam", "hack", "breach", "warning",
}

var typeKeywords = map[Type][]string{
	TypeTraditionalBank: {"bank run", "withdraw", "frozen", "closed", "fdic", "bankrupt"},
	TypeNeobank:         {"frozen", "account closed", "withdraw", "fdic", "locked out"},
	TypeCryptoExchange:  {"rug pull", "rugpull", "exit scam", "funds locked", "can't withdraw", "insolvency", "paused withdrawals", "halted"},
	TypeCryptoWallet:    {"drained", "seed phrase", "exploit", "funds locked", "phishing"},
	TypeTradingPlatform: {"can't sell", "can't buy", "order stuck", "margin call"},
	TypePaymentApp:      {"frozen accounts", "failed transfers", "fraud waves", "held funds"},
	TypeUnknown:         {"sec", "lawsuit", "investigation", "subpoena"},
}

// RiskKeywords returns the fixed ordered keyword list for a type: the general
// list followed by the type-specific signals. The order is stable because it
// feeds both query augmentation and live keyword matching.
func RiskKeywords(t Type) []string {
	out := make([]string, 0, len(generalKeywords)+len(typeKeywords[t]))
	out = append(out, generalKeywords...)
	out = append(out, typeKeywords[t]...)
	return out
}

// maxQueryKeywords bounds how many risk keywords are folded into the search
// query; the upstream API rejects overlong rule values.
const maxQueryKeywords = 10

// isLikelyPerson guesses whether an unclassified name is a person rather than
// a brand: two or three space-separated words. Unvalidated heuristic; override
// by registering the name.
func isLikelyPerson(name string) bool {
	words := strings.Fields(name)
	return len(words) >= 2 && len(words) <= 3
}

// BuildQuery derives the base match clause for an institution. Person-like
// unknown names get a relaxed disjunction of first word and full name;
// everything else matches the exact phrase.
func BuildQuery(name string, t Type) string {
	name = strings.TrimSpace(name)
	if t == TypeUnknown && isLikelyPerson(name) {
		first := strings.Fields(name)[0]
		return fmt.Sprintf(`(%s OR "%s")`, first, name)
	}
	return fmt.Sprintf("%q", name)
}

// BuildRiskQuery augments the base clause with the top risk keywords as a
// disjunction, mirroring the risk-focused search of the poll path.
func BuildRiskQuery(name string, t Type) string {
	base := BuildQuery(name, t)
	keywords := RiskKeywords(t)
	if len(keywords) > maxQueryKeywords {
		keywords = keywords[:maxQueryKeywords]
	}
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		if strings.Contains(k, " ") {
			quoted[i] = fmt.Sprintf("%q", k)
		} else {
			quoted[i] = k
		}
	}
	return fmt.Sprintf("%s (%s)", base, strings.Join(quoted, " OR "))
}

// StreamRule is a matched rule for the live filtered stream.
type StreamRule struct {
	Value string `json:"value"`
	Tag   string `json:"tag"`
}

// BuildStreamRule derives the filtered-stream rule for an entity. The tag is
// the lower-cased entity name, which the stream uses to match posts back to
// their entity.
func BuildStreamRule(e Entity) StreamRule {
	return StreamRule{
		Value: fmt.Sprintf("%s lang:en -is:retweet", e.SearchRule),
		Tag:   RuleTag(e.Name),
	}
}

// RuleTag normalizes an entity name into its stream rule tag.
func RuleTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
