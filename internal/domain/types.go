package domain

import "sort"

// Product is the record looked up from the product datastore for a given
// code and language. Everything beyond name and ingredients is optional.
type Product struct {
	Code        string             `json:"product_code"`
	Language    string             `json:"language"`
	Name        string             `json:"product_name,omitempty"`
	Ingredients string             `json:"ingredients,omitempty"`
	Additives   string             `json:"additives,omitempty"`
	Allergens   []string           `json:"allergens_tags,omitempty"`
	Nutriments  map[string]float64 `json:"nutriments,omitempty"`
	Labels      []string           `json:"labels_tags,omitempty"`
	Categories  string             `json:"categories,omitempty"`
	NutriScore  string             `json:"nutriscore_grade,omitempty"`
	NovaGroup   int                `json:"nova_group,omitempty"`
}

// Complete reports whether the record carries the fields the summary
// pipeline cannot run without.
func (p *Product) Complete() bool {
	return p != nil && p.Name != "" && p.Ingredients != ""
}

// UltraProcessed reports whether the product is classified NOVA group 4.
func (p *Product) UltraProcessed() bool {
	return p.NovaGroup >= 4
}

// LowNutriScore reports whether the product carries a D or E Nutri-Score.
func (p *Product) LowNutriScore() bool {
	return p.NutriScore == "d" || p.NutriScore == "e"
}

// SummaryRequest is the inbound body of the nutrition-summary endpoint.
// Only the set of true-valued keys in Preferences and Allergies is
// semantically meaningful; the values themselves never reach the prompt.
type SummaryRequest struct {
	ProductCode string          `json:"productCode"`
	Language    string          `json:"language"`
	Preferences map[string]bool `json:"preferences"`
	Allergies   map[string]bool `json:"allergies"`
	HealthGoal  string          `json:"healthGoal,omitempty"`
	Religion    string          `json:"religion,omitempty"`
}

// RecipeRequest is the inbound body of the recipe-steps endpoint.
type RecipeRequest struct {
	Language string `json:"language"`
	Recipe   Recipe `json:"recipe"`
}

type Recipe struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	Ingredients         string `json:"ingredients"`
	OptionalIngredients string `json:"optional_ingredients"`
}

// ActiveKeys reduces a boolean-keyed flag map to the sorted list of keys
// whose value is true. Sorting makes the result independent of how the map
// was constructed, so equivalent requests always collapse to the same key
// list for hashing and display.
func ActiveKeys(flags map[string]bool) []string {
	keys := make([]string, 0, len(flags))
	for k, v := range flags {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
