// ABOUTME: Ordered classification tables driving the contact converter
// ABOUTME: First matching rule wins; declaration order also defines phone sort rank
package convert

import (
	"sort"
	"strings"
)

const (
	// DefaultPhoneType is assigned when no phone rule matches.
	DefaultPhoneType = "other"

	// FaxPhoneType is forced for any number tagged as FAX.
	FaxPhoneType = "fax_work"
)

// Rule maps a type tag substring to an appliance type or classifier.
type Rule struct {
	Match  string `json:"match"`
	Result string `json:"result"`
}

// Replacement is one character substitution applied to phone numbers.
type Replacement struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Rules configures a Converter.
type Rules struct {
	PhoneTypes   []Rule              `json:"phone_types"`
	EmailTypes   []Rule              `json:"email_types"`
	PhoneReplace []Replacement       `json:"phone_replace"`
	VIP          map[string][]string `json:"vip"`
	RealName     []string            `json:"real_name"`
}

// classify returns the lower-cased result of the first rule whose match is
// contained in the joined upper-case type tags.
func classify(rules []Rule, joinedTypes string) (string, bool) {
	for _, r := range rules {
		if r.Match == "" {
			continue
		}
		if strings.Contains(joinedTypes, strings.ToUpper(r.Match)) {
			return strings.ToLower(r.Result), true
		}
	}
	return "", false
}

// sortOrder returns the rank of each phone type: declared results in order,
// duplicates removed, the default type last.
func sortOrder(rules []Rule) map[string]int {
	order := make(map[string]int)
	for _, r := range rules {
		t := strings.ToLower(r.Result)
		if _, ok := order[t]; !ok {
			order[t] = len(order)
		}
	}
	if _, ok := order[DefaultPhoneType]; !ok {
		order[DefaultPhoneType] = len(order)
	}
	return order
}

// newReplacer builds a replacer that prefers the longest source string, the
// way strtr-style tables behave.
func newReplacer(pairs []Replacement) *strings.Replacer {
	if len(pairs) == 0 {
		return nil
	}
	sorted := append([]Replacement(nil), pairs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].From) > len(sorted[j].From)
	})
	args := make([]string, 0, len(sorted)*2)
	for _, p := range sorted {
		if p.From == "" {
			continue
		}
		args = append(args, p.From, p.To)
	}
	if len(args) == 0 {
		return nil
	}
	return strings.NewReplacer(args...)
}
