package cocktaildb

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var ingredientKey = regexp.MustCompile(`^strIngredient(\d+)$`)

// Recipe is one drink as returned by the service.
type Recipe struct {
	Name         string
	Ingredients  *orderedmap.OrderedMap[string, string] // ingredient -> amount, discovery order
	Instructions string
}

// recipeFromRecord extracts the numbered ingredient/measure slots. Slots are
// scanned in ascending number; a name seen twice keeps its first position and
// takes the later measure.
func recipeFromRecord(rec map[string]any) *Recipe {
	var slots []int
	for k := range rec {
		m := ingredientKey.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slots = append(slots, n)
	}
	sort.Ints(slots)

	ingredients := orderedmap.New[string, string]()
	for _, n := range slots {
		name, ok := stringField(rec, fmt.Sprintf("strIngredient%d", n))
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		amount, _ := stringField(rec, fmt.Sprintf("strMeasure%d", n))
		ingredients.Set(name, strings.TrimSpace(amount))
	}

	name, _ := stringField(rec, "strDrink")
	instructions, _ := stringField(rec, "strInstructions")

	return &Recipe{
		Name:         name,
		Ingredients:  ingredients,
		Instructions: strings.TrimSpace(instructions),
	}
}

func stringField(rec map[string]any, key string) (string, bool) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Render produces the fixed recipe block:
//
//	Name: <name>
//
//	Ingredients:
//	- <ingredient>: <amount>
//
//	Instructions:
//	<instructions>
//
// An ingredient with no amount renders as "- <ingredient>".
func Render(r *Recipe) string {
	var ing strings.Builder
	if r.Ingredients != nil {
		for pair := r.Ingredients.Oldest(); pair != nil; pair = pair.Next() {
			if pair.Value != "" {
				fmt.Fprintf(&ing, "- %s: %s\n", pair.Key, pair.Value)
			} else {
				fmt.Fprintf(&ing, "- %s\n", pair.Key)
			}
		}
	}
	return fmt.Sprintf("Name: %s\n\nIngredients:\n%s\nInstructions:\n%s\n", r.Name, ing.String(), r.Instructions)
}
