// Package categories maps tracker specific category tokens to the canonical newznab codes
// and back.
package categories

import (
	"fmt"
	"strconv"
	"strings"

	"trackscrape/internal/definition"

	"github.com/antzucaro/matchr"
)

// minSimilarity is the Jaro-Winkler score above which a misspelled category name
// (`Movie/HD`) still resolves to a canonical one.
const minSimilarity = 0.9

type Mapping struct {
	TrackerID string
	Category  Category
	Desc      string
	Default   bool
}

type Mapper struct {
	mappings []Mapping
}

// Resolve finds the canonical category of a name (exact, case insensitive or fuzzy) or
// of a numeric code.
func Resolve(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	if id, err := strconv.Atoi(name); err == nil {
		return Lookup(id)
	}

	for _, c := range Newznab {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}

	var best Category
	var bestSimilarity float64
	for _, c := range Newznab {
		similarity := matchr.JaroWinkler(strings.ToLower(name), strings.ToLower(c.Name), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = c
		}
	}
	if bestSimilarity >= minSimilarity {
		return best, true
	}
	return Category{}, false
}

// NewMapper builds the mapping table out of the `caps` block of a definition.
func NewMapper(site string, caps definition.Capabilities) (*Mapper, error) {
	m := &Mapper{}

	for _, pair := range caps.Categories {
		category, ok := Resolve(pair.Value)
		if !ok {
			return nil, &definition.Error{
				Site:  site,
				Where: "caps.categories." + pair.Key,
				Err:   fmt.Errorf("%w: unknown category %q", definition.ErrInvalidValue, pair.Value),
			}
		}
		m.mappings = append(m.mappings, Mapping{TrackerID: pair.Key, Category: category})
	}

	for _, mapping := range caps.CategoryMappings {
		category, ok := Resolve(mapping.Cat)
		if !ok {
			return nil, &definition.Error{
				Site:  site,
				Where: "caps.categorymappings." + mapping.ID,
				Err:   fmt.Errorf("%w: unknown category %q", definition.ErrInvalidValue, mapping.Cat),
			}
		}
		m.mappings = append(m.mappings, Mapping{
			TrackerID: mapping.ID,
			Category:  category,
			Desc:      mapping.Desc,
			Default:   mapping.Default,
		})
	}

	return m, nil
}

func (m *Mapper) Mappings() []Mapping {
	return m.mappings
}

func appendUnique[T comparable](list []T, v T) []T {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// MapTrackerCat returns the canonical codes of a tracker category token.
func (m *Mapper) MapTrackerCat(token string) []int {
	token = strings.TrimSpace(token)
	var out []int
	for _, mapping := range m.mappings {
		if mapping.TrackerID == token {
			out = appendUnique(out, mapping.Category.ID)
		}
	}
	return out
}

// MapTrackerCatDesc does the same as MapTrackerCat with the description of a mapping.
func (m *Mapper) MapTrackerCatDesc(desc string) []int {
	desc = strings.TrimSpace(desc)
	var out []int
	for _, mapping := range m.mappings {
		if mapping.Desc != "" && strings.EqualFold(mapping.Desc, desc) {
			out = appendUnique(out, mapping.Category.ID)
		}
	}
	return out
}

// MapToTracker returns the tracker ids for the canonical codes of a query, a top level
// code also selects the tracker ids of its subcategories.
func (m *Mapper) MapToTracker(codes []int) []string {
	var out []string
	for _, code := range codes {
		for _, mapping := range m.mappings {
			if mapping.Category.ID == code || (code%1000 == 0 && mapping.Category.Parent() == code) {
				out = appendUnique(out, mapping.TrackerID)
			}
		}
	}
	return out
}

// Defaults returns the tracker ids searched when a query has no category.
func (m *Mapper) Defaults() []string {
	var out []string
	for _, mapping := range m.mappings {
		if mapping.Default {
			out = appendUnique(out, mapping.TrackerID)
		}
	}
	return out
}
