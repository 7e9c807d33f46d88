package entities

import (
	"strings"
	"testing"
)

func TestClassify_ExactLookup(t *testing.T) {
	cases := map[string]Type{
		"Chase":       TypeTraditionalBank,
		"coinbase":    TypeCryptoExchange,
		"MetaMask":    TypeCryptoWallet,
		"Robinhood":   TypeTradingPlatform,
		"Venmo":       TypePaymentApp,
		"Chime":       TypeNeobank,
		"Wells Fargo": TypeTraditionalBank,
	}
	for name, want := range cases {
		if got := Classify(name); got != want {
			t.Fatalf("Classify(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestClassify_SubstringBothDirections(t *testing.T) {
	// Name contains registry key
	if got := Classify("Coinbase Pro"); got != TypeCryptoExchange {
		t.Fatalf("expected crypto_exchange for Coinbase Pro, got %q", got)
	}
	// Registry key contains name
	if got := Classify("Schwab"); got != TypeTradingPlatform {
		t.Fatalf("expected trading_platform for Schwab, got %q", got)
	}
}

func TestClassify_LongestMatchWins(t *testing.T) {
	// "cash app support" matches both "cash app" (payment) and shorter keys;
	// the longest registry key must win regardless of map iteration order.
	for i := 0; i < 50; i++ {
		if got := Classify("cash app support"); got != TypePaymentApp {
			t.Fatalf("iteration %d: expected payment_app, got %q", i, got)
		}
	}
}

func TestClassify_KeywordHeuristics(t *testing.T) {
	cases := map[string]Type{
		"First National Bank": TypeTraditionalBank,
		"SomeCoin Exchange":   TypeCryptoExchange,
		"Acme Trading":        TypeTradingPlatform,
		"QuickPay":            TypePaymentApp,
	}
	for name, want := range cases {
		if got := Classify(name); got != want {
			t.Fatalf("Classify(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestClassify_TotalAndDeterministic(t *testing.T) {
	names := []string{"", "   ", "Xyzzy Holdings LLC", "Chase", "totally unheard of"}
	for _, name := range names {
		first := Classify(name)
		for i := 0; i < 10; i++ {
			if got := Classify(name); got != first {
				t.Fatalf("Classify(%q) is not deterministic: %q then %q", name, first, got)
			}
		}
	}
	if Classify("Xyzzy Holdings LLC") == "" {
		t.Fatal("classification must be total")
	}
}

func TestBuildQuery_ExactPhrase(t *testing.T) {
	if got := BuildQuery("Wells Fargo", TypeTraditionalBank); got != `"Wells Fargo"` {
		t.Fatalf("expected exact phrase clause, got %s", got)
	}
}

func TestBuildQuery_PersonHeuristic(t *testing.T) {
	got := BuildQuery("Jane Doe", TypeUnknown)
	if got != `(Jane OR "Jane Doe")` {
		t.Fatalf("expected relaxed person clause, got %s", got)
	}
	// A single unknown word is treated as a brand.
	if got := BuildQuery("Zorp", TypeUnknown); got != `"Zorp"` {
		t.Fatalf("expected exact clause for single word, got %s", got)
	}
	// Known types never use the person heuristic.
	if got := BuildQuery("Cash App", TypePaymentApp); got != `"Cash App"` {
		t.Fatalf("expected exact clause for known type, got %s", got)
	}
}

func TestBuildRiskQuery_BoundsKeywords(t *testing.T) {
	q := BuildRiskQuery("Coinbase", TypeCryptoExchange)
	if !strings.HasPrefix(q, `"Coinbase" (`) {
		t.Fatalf("unexpected query prefix: %s", q)
	}
	if got := strings.Count(q, " OR "); got != maxQueryKeywords-1 {
		t.Fatalf("expected %d OR-joined keywords, got %d: %s", maxQueryKeywords, got+1, q)
	}
}

func TestRiskKeywords_StableOrderPerType(t *testing.T) {
	a := RiskKeywords(TypeCryptoExchange)
	b := RiskKeywords(TypeCryptoExchange)
	if len(a) != len(b) {
		t.Fatal("keyword list length changed between calls")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("keyword order unstable at %d: %q vs %q", i, a[i], b[i])
		}
	}
	if a[0] != "outage" {
		t.Fatalf("general keywords must come first, got %q", a[0])
	}
}

func TestNewEntity_DerivesRule(t *testing.T) {
	e := NewEntity("Coinbase")
	if e.Type != TypeCryptoExchange {
		t.Fatalf("expected crypto_exchange, got %q", e.Type)
	}
	if e.SearchRule != `"Coinbase"` {
		t.Fatalf("unexpected search rule %s", e.SearchRule)
	}
	rule := BuildStreamRule(e)
	if rule.Tag != "coinbase" {
		t.Fatalf("unexpected rule tag %s", rule.Tag)
	}
	if !strings.Contains(rule.Value, "-is:retweet") {
		t.Fatalf("stream rule must exclude retweets: %s", rule.Value)
	}
}

func TestKnownInstitutions_Sorted(t *testing.T) {
	list := KnownInstitutions()
	if len(list) == 0 {
		t.Fatal("registry must not be empty")
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Fatalf("institutions not sorted at %d: %s > %s", i, list[i-1].Name, list[i].Name)
		}
	}
}
