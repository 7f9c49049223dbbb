// Package culture resolves destination cultural profiles: clothing norms,
// gift customs, festivals and the hierarchical taboo rules applied to the
// catalog.
package culture

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

//go:embed data/cultures.yaml
var culturesYAML []byte

// Rule levels, from broadest to most specific.
const (
	LevelGeneric = "generic"
	LevelRegion  = "region"
	LevelCountry = "country"
	LevelCity    = "city"
)

// Rule forbids products carrying Tag. Activities limits the rule to those
// activities (empty means all); ExceptActivities relaxes it for specific ones.
type Rule struct {
	Tag              string   `yaml:"tag" json:"tag"`
	Reason           string   `yaml:"reason" json:"reason"`
	Substitutes      []string `yaml:"substitutes" json:"substitutes,omitempty"`
	Activities       []string `yaml:"activities" json:"activities,omitempty"`
	ExceptActivities []string `yaml:"except_activities" json:"exceptActivities,omitempty"`
	Level            string   `yaml:"-" json:"level"`
	Source           string   `yaml:"-" json:"source"`
}

// AppliesTo reports whether the rule is active for activity. An empty
// activity is treated as general.
func (r Rule) AppliesTo(activity string) bool {
	if activity == "" {
		activity = models.ActivityGeneral
	}
	if containsString(r.ExceptActivities, activity) {
		return false
	}
	return len(r.Activities) == 0 || containsString(r.Activities, activity)
}

// Profile is the merged cultural context for one destination.
type Profile struct {
	Destination      string            `json:"destination"`
	City             string            `json:"city,omitempty"`
	Country          string            `json:"country,omitempty"`
	Region           string            `json:"region,omitempty"`
	Known            bool              `json:"known"`
	Conservative     bool              `json:"conservative"`
	ClothingNorms    map[string]string `json:"clothingNorms"`
	GiftCulture      string            `json:"giftCulture"`
	SensitivityFlags []string          `json:"sensitivityFlags,omitempty"`
	Festivals        []models.Festival `json:"festivals,omitempty"`
	Rules            []Rule            `json:"rules,omitempty"`
	Note             string            `json:"note,omitempty"`
}

// RulesFor returns the rules active for activity, broadest level first.
func (p Profile) RulesFor(activity string) []Rule {
	var out []Rule
	for _, r := range p.Rules {
		if r.AppliesTo(activity) {
			out = append(out, r)
		}
	}
	return out
}

// Place is a name the parser can recognise in free text.
type Place struct {
	Name    string // lowercase match key
	City    string
	Country string
}

type allowSpec struct {
	Tag        string   `yaml:"tag"`
	Activities []string `yaml:"activities"`
}

type occurrenceSpec struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type festivalSpec struct {
	Name              string           `yaml:"name"`
	When              string           `yaml:"when"`
	Months            []int            `yaml:"months"`
	Occurrences       []occurrenceSpec `yaml:"occurrences"`
	Significance      string           `yaml:"significance"`
	ShoppingRelevance string           `yaml:"shopping_relevance"`
	Tags              []string         `yaml:"tags"`
}

type levelSpec struct {
	Name             string               `yaml:"name"`
	Region           string               `yaml:"region"`
	Aliases          []string             `yaml:"aliases"`
	Conservative     *bool                `yaml:"conservative"`
	SensitivityFlags []string             `yaml:"sensitivity_flags"`
	ClothingNorms    map[string]string    `yaml:"clothing_norms"`
	GiftCulture      string               `yaml:"gift_culture"`
	Festivals        []festivalSpec       `yaml:"festivals"`
	Taboos           []Rule               `yaml:"taboos"`
	Allow            []allowSpec          `yaml:"allow"`
	Cities           map[string]levelSpec `yaml:"cities"`
}

type fileSpec struct {
	Generic   levelSpec            `yaml:"generic"`
	Regions   map[string]levelSpec `yaml:"regions"`
	Countries map[string]levelSpec `yaml:"countries"`
}

type level struct {
	kind         string
	name         string
	region       string
	conservative *bool
	flags        []string
	norms        map[string]string
	gift         string
	festivals    []models.Festival
	taboos       []Rule
	allow        []allowSpec
}

type cityEntry struct {
	country string // key into Table.countries
	level   *level
}

// Table is the immutable cultural database.
type Table struct {
	generic   *level
	regions   map[string]*level
	countries map[string]*level
	aliases   map[string]string // lowercase alias -> country key
	cities    map[string]cityEntry
	places    []Place
}

// Load returns the embedded cultural table.
func Load() (*Table, error) {
	return Parse(culturesYAML)
}

// Parse builds a table from YAML. Every country must name a known region.
func Parse(data []byte) (*Table, error) {
	var f fileSpec
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cultures: %w", err)
	}
	t := &Table{
		regions:   make(map[string]*level, len(f.Regions)),
		countries: make(map[string]*level, len(f.Countries)),
		aliases:   make(map[string]string),
		cities:    make(map[string]cityEntry),
	}

	var err error
	if t.generic, err = newLevel(LevelGeneric, "Generic", f.Generic); err != nil {
		return nil, err
	}
	for key, spec := range f.Regions {
		name := spec.Name
		if name == "" {
			name = key
		}
		if t.regions[key], err = newLevel(LevelRegion, name, spec); err != nil {
			return nil, err
		}
	}
	for name, spec := range f.Countries {
		if spec.Region != "" {
			if _, ok := t.regions[spec.Region]; !ok {
				return nil, fmt.Errorf("parse cultures: country %s: unknown region %q", name, spec.Region)
			}
		}
		co, err := newLevel(LevelCountry, name, spec)
		if err != nil {
			return nil, err
		}
		key := normalize(name)
		t.countries[key] = co
		t.aliases[key] = key
		t.places = append(t.places, Place{Name: key, Country: name})
		for _, a := range spec.Aliases {
			t.aliases[normalize(a)] = key
			t.places = append(t.places, Place{Name: normalize(a), Country: name})
		}
		for cityName, cspec := range spec.Cities {
			ci, err := newLevel(LevelCity, cityName, cspec)
			if err != nil {
				return nil, err
			}
			entry := cityEntry{country: key, level: ci}
			t.cities[normalize(cityName)] = entry
			t.places = append(t.places, Place{Name: normalize(cityName), City: cityName, Country: name})
			for _, a := range cspec.Aliases {
				t.cities[normalize(a)] = entry
				t.places = append(t.places, Place{Name: normalize(a), City: cityName, Country: name})
			}
		}
	}
	// Longest names first so "new delhi" wins over "delhi".
	sort.Slice(t.places, func(i, j int) bool {
		if len(t.places[i].Name) != len(t.places[j].Name) {
			return len(t.places[i].Name) > len(t.places[j].Name)
		}
		return t.places[i].Name < t.places[j].Name
	})
	return t, nil
}

func newLevel(kind, name string, spec levelSpec) (*level, error) {
	lv := &level{
		kind:         kind,
		name:         name,
		region:       spec.Region,
		conservative: spec.Conservative,
		flags:        spec.SensitivityFlags,
		norms:        spec.ClothingNorms,
		gift:         spec.GiftCulture,
		taboos:       spec.Taboos,
		allow:        spec.Allow,
	}
	for _, fs := range spec.Festivals {
		fest, err := parseFestival(fs)
		if err != nil {
			return nil, fmt.Errorf("parse cultures: %s %s: %w", kind, name, err)
		}
		lv.festivals = append(lv.festivals, fest)
	}
	for i := range lv.taboos {
		if lv.taboos[i].Tag == "" {
			return nil, fmt.Errorf("parse cultures: %s %s: taboo without tag", kind, name)
		}
		lv.taboos[i].Level = kind
		lv.taboos[i].Source = name
	}
	return lv, nil
}

func parseFestival(fs festivalSpec) (models.Festival, error) {
	f := models.Festival{
		Name:              fs.Name,
		When:              fs.When,
		Significance:      fs.Significance,
		ShoppingRelevance: fs.ShoppingRelevance,
		Tags:              fs.Tags,
	}
	for _, m := range fs.Months {
		if m < 1 || m > 12 {
			return models.Festival{}, fmt.Errorf("festival %s: month %d out of range", fs.Name, m)
		}
		f.Months = append(f.Months, time.Month(m))
	}
	for _, o := range fs.Occurrences {
		start, err := time.Parse(time.DateOnly, o.Start)
		if err != nil {
			return models.Festival{}, fmt.Errorf("festival %s: start: %w", fs.Name, err)
		}
		end, err := time.Parse(time.DateOnly, o.End)
		if err != nil {
			return models.Festival{}, fmt.Errorf("festival %s: end: %w", fs.Name, err)
		}
		if end.Before(start) {
			return models.Festival{}, fmt.Errorf("festival %s: end %s before start %s", fs.Name, o.End, o.Start)
		}
		f.Occurrences = append(f.Occurrences, models.DateRange{Start: start, End: end})
	}
	return f, nil
}

// Places lists every recognisable city, country and alias, longest first.
func (t *Table) Places() []Place {
	out := make([]Place, len(t.places))
	copy(out, t.places)
	return out
}

// Resolve builds the profile for a destination. city and country are tried
// first; destination may be a city, a country or "City, Country". Unknown
// destinations get the generic respectful profile.
func (t *Table) Resolve(destination, city, country string) Profile {
	candidates := append([]string{city}, strings.Split(destination, ",")...)

	var ci cityEntry
	var found bool
	for _, c := range candidates {
		if ci, found = t.cities[normalize(c)]; found {
			break
		}
	}

	var coKey string
	if found {
		coKey = ci.country
	} else {
		for _, c := range append([]string{country}, candidates...) {
			if key, ok := t.aliases[normalize(c)]; ok {
				coKey = key
				break
			}
		}
	}
	co := t.countries[coKey]
	if co == nil {
		return t.genericProfile(firstNonEmpty(destination, city, country))
	}

	chain := []*level{t.generic}
	if r := t.regions[co.region]; r != nil {
		chain = append(chain, r)
	}
	chain = append(chain, co)
	if found {
		chain = append(chain, ci.level)
	}
	p := build(chain)
	p.Known = true
	switch {
	case p.City != "":
		p.Destination = p.City + ", " + p.Country
	case strings.TrimSpace(city) != "":
		p.City = strings.TrimSpace(city)
		p.Destination = p.City + ", " + p.Country
	default:
		p.Destination = p.Country
	}
	return p
}

func (t *Table) genericProfile(destination string) Profile {
	p := build([]*level{t.generic})
	p.Destination = strings.TrimSpace(destination)
	if p.Destination == "" || strings.EqualFold(p.Destination, "unspecified") {
		p.Destination = "unspecified"
		p.Note = "No destination given, showing broadly respectful travel options"
	} else {
		p.Note = "Limited cultural data available for " + p.Destination
	}
	return p
}

func build(chain []*level) Profile {
	p := Profile{ClothingNorms: make(map[string]string)}
	for _, lv := range chain {
		switch lv.kind {
		case LevelRegion:
			p.Region = lv.name
		case LevelCountry:
			p.Country = lv.name
		case LevelCity:
			p.City = lv.name
		}
		if lv.conservative != nil {
			p.Conservative = *lv.conservative
		}
		for k, v := range lv.norms {
			p.ClothingNorms[k] = v
		}
		if lv.gift != "" {
			p.GiftCulture = lv.gift
		}
		for _, flag := range lv.flags {
			if !containsString(p.SensitivityFlags, flag) {
				p.SensitivityFlags = append(p.SensitivityFlags, flag)
			}
		}
		for _, f := range lv.festivals {
			p.Festivals = mergeFestival(p.Festivals, f)
		}
		for _, a := range lv.allow {
			p.Rules = relax(p.Rules, a)
		}
		for _, r := range lv.taboos {
			p.Rules = override(p.Rules, r)
		}
	}
	return p
}

// relax exempts the allowed activities from inherited rules on the same tag;
// an allow without activities drops the rule entirely.
func relax(rules []Rule, a allowSpec) []Rule {
	out := rules[:0:0]
	for _, r := range rules {
		if r.Tag != a.Tag {
			out = append(out, r)
			continue
		}
		if len(a.Activities) == 0 {
			continue
		}
		except := append([]string(nil), r.ExceptActivities...)
		r.ExceptActivities = append(except, a.Activities...)
		out = append(out, r)
	}
	return out
}

// override replaces an inherited rule on the same tag, or appends.
func override(rules []Rule, r Rule) []Rule {
	for i := range rules {
		if rules[i].Tag == r.Tag {
			out := append([]Rule(nil), rules...)
			out[i] = r
			return out
		}
	}
	return append(rules, r)
}

func mergeFestival(festivals []models.Festival, f models.Festival) []models.Festival {
	for _, existing := range festivals {
		if existing.Name == f.Name {
			return festivals
		}
	}
	return append(festivals, f)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
