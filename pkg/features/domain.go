package features

import "strings"

// SynonymRule maps a set of normalized tokens onto one domain member. The
// member itself always matches. With Prefix set, any token starting with
// the member or a trigger matches.
type SynonymRule struct {
	Member   string
	Triggers []string
	Prefix   bool
}

func (r SynonymRule) matches(token string) bool {
	candidates := append([]string{r.Member}, r.Triggers...)
	for _, c := range candidates {
		c = NormalizeToken(c)
		if token == c || (r.Prefix && strings.HasPrefix(token, c)) {
			return true
		}
	}
	return false
}

// Domain is the closed value set of a categorical key. Rules are tried in
// order and the first match wins, so a trigger listed under two members
// resolves to the earlier one.
type Domain struct {
	Name    string
	Members []string
	Rules   []SynonymRule
	// Fallback is returned for blank or unmatched input. An empty fallback
	// means unknown: frame artifacts impute it, vector artifacts never see it.
	Fallback string
	// ColumnDefault fills a dataset column that has no usable value at all.
	ColumnDefault string
}

func (d *Domain) Contains(value string) bool {
	for _, m := range d.Members {
		if m == value {
			return true
		}
	}
	return false
}

// Match resolves an already normalized token.
func (d *Domain) Match(token string) (string, bool) {
	for _, rule := range d.Rules {
		if rule.matches(token) {
			return rule.Member, true
		}
	}
	return "", false
}

func exactRules(members ...string) []SynonymRule {
	rules := make([]SynonymRule, len(members))
	for i, m := range members {
		rules[i] = SynonymRule{Member: m}
	}
	return rules
}
