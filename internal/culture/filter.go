package culture

import (
	"strings"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// Filter splits products into those allowed for activity at the profile's
// destination and those excluded by a taboo rule. When several rules match,
// the most specific level is reported.
func Filter(products []models.Product, p Profile, activity string) ([]models.Product, []models.ExcludedProduct) {
	rules := p.RulesFor(activity)
	kept := make([]models.Product, 0, len(products))
	var excluded []models.ExcludedProduct
	for _, prod := range products {
		rule, hit := matchRule(prod, rules)
		if !hit {
			kept = append(kept, prod)
			continue
		}
		excluded = append(excluded, models.ExcludedProduct{
			ID:          prod.ID,
			Name:        prod.Name,
			Rule:        rule.Tag,
			Level:       rule.Level,
			Reason:      rule.Reason,
			Substitutes: rule.Substitutes,
		})
	}
	return kept, excluded
}

func matchRule(prod models.Product, rules []Rule) (Rule, bool) {
	for i := len(rules) - 1; i >= 0; i-- {
		if prod.HasTag(rules[i].Tag) {
			return rules[i], true
		}
	}
	return Rule{}, false
}

// SubstituteTags collects the distinct substitute tags of excluded items in
// first-seen order.
func SubstituteTags(excluded []models.ExcludedProduct) []string {
	var out []string
	for _, e := range excluded {
		for _, tag := range e.Substitutes {
			if !containsString(out, tag) {
				out = append(out, tag)
			}
		}
	}
	return out
}

// CulturalScore rates how well a product suits the destination's customs,
// from 0.5 up to 1.0.
func CulturalScore(prod models.Product, p Profile) float64 {
	score := 0.5
	if prod.HasTag("accessories") || prod.HasTag("clothing") {
		score += 0.2
	}
	gift := strings.ToLower(p.GiftCulture)
	if strings.Contains(gift, "jewelry") && prod.HasTag("jewelry") {
		score += 0.3
	}
	if strings.Contains(gift, "traditional") && strings.Contains(strings.ToLower(prod.Name), "traditional") {
		score += 0.3
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

var softeners = strings.NewReplacer("must", "recommended to", "required", "advised")

// SoftenNorms returns a copy of norms with prescriptive wording replaced by
// advisory wording.
func SoftenNorms(norms map[string]string) map[string]string {
	out := make(map[string]string, len(norms))
	for k, v := range norms {
		out[k] = softeners.Replace(v)
	}
	return out
}
