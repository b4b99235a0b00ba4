package prompt

import (
	"strings"
	"testing"

	"github.com/foodanalyzer/food-analyzer/internal/domain"
)

func testProduct() *domain.Product {
	return &domain.Product{
		Code:        "123",
		Language:    "english",
		Name:        "Oat Drink",
		Ingredients: "water, oats, rapeseed oil, salt",
		Allergens:   []string{"en:gluten"},
		Nutriments: map[string]float64{
			"energy-kcal_100g": 46,
			"sugars_100g":      3.4,
			"salt_100g":        0.1,
		},
		Labels:     []string{"en:vegan", "en:vegetarian"},
		Categories: "plant-based beverages",
	}
}

func TestProductSummary_PreferenceOnlyNumbering(t *testing.T) {
	out := ProductSummary(SummaryInput{
		Preferences: "vegan",
		Product:     testProduct(),
		Language:    "english",
	})

	if !strings.Contains(out, "1. Check if product labels match dietary preferences (vegan)") {
		t.Error("expected the preference instruction to be numbered 1 when no allergies are set")
	}
	if strings.Contains(out, "allergies (") {
		t.Error("prompt must not contain an allergy instruction when no allergies are set")
	}
	if strings.Contains(out, "<user_allergies>") {
		t.Error("prompt must not emit the user allergies tag when no allergies are set")
	}
}

func TestProductSummary_FullNumbering(t *testing.T) {
	out := ProductSummary(SummaryInput{
		Allergies:   "milk, nuts",
		Preferences: "vegan",
		HealthGoal:  "lose weight",
		Religion:    "halal",
		Product:     testProduct(),
		Language:    "english",
	})

	for _, want := range []string{
		"1. CRITICAL: Check if any product allergens match the user's allergies (milk, nuts)",
		"2. Check if product labels match dietary preferences (vegan)",
		"3. Use nutritional data to assess if the product aligns with the health goal: lose weight.",
		"4. Check if product labels match religious requirement: halal.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing instruction %q", want)
		}
	}
}

func TestProductSummary_SkippedStepsRenumber(t *testing.T) {
	out := ProductSummary(SummaryInput{
		Allergies: "milk",
		Religion:  "kosher",
		Product:   testProduct(),
		Language:  "english",
	})

	if !strings.Contains(out, "1. CRITICAL:") {
		t.Error("allergy check should be step 1")
	}
	if !strings.Contains(out, "2. Check if product labels match religious requirement: kosher.") {
		t.Error("religion check should renumber to 2 when preference and health goal are unset")
	}
	if strings.Contains(out, "\n3. ") {
		t.Error("no third step expected")
	}
}

func TestProductSummary_NoUserFieldsDegradesToGenericAdvice(t *testing.T) {
	out := ProductSummary(SummaryInput{Product: testProduct(), Language: "english"})

	if strings.Contains(out, "\n1. ") {
		t.Error("no numbered steps expected without user fields")
	}
	if !strings.Contains(out, "offer general nutritional advice") {
		t.Error("expected the generic-advice directive")
	}
	for _, tag := range []string{"<user_allergies>", "<user_health_goal>", "<user_dietary_preferences>", "<user_religious_requirement>"} {
		if strings.Contains(out, tag) {
			t.Errorf("unexpected tag %s without user input", tag)
		}
	}
}

func TestProductSummary_ReligionTagIffSet(t *testing.T) {
	withReligion := ProductSummary(SummaryInput{Religion: "halal", Product: testProduct(), Language: "english"})
	if !strings.Contains(withReligion, "<user_religious_requirement>halal</user_religious_requirement>") {
		t.Error("expected religion tag when religion is set")
	}

	without := ProductSummary(SummaryInput{Product: testProduct(), Language: "english"})
	if strings.Contains(without, "<user_religious_requirement>") {
		t.Error("religion tag must not appear when religion is unset")
	}
}

func TestProductSummary_AllergenBlockRequiresUserAllergies(t *testing.T) {
	without := ProductSummary(SummaryInput{Product: testProduct(), Language: "english"})
	if strings.Contains(without, "<product_allergens>") {
		t.Error("product allergens must be hidden when the user declared no allergies")
	}

	with := ProductSummary(SummaryInput{Allergies: "gluten", Product: testProduct(), Language: "english"})
	if !strings.Contains(with, "<product_allergens>en:gluten</product_allergens>") {
		t.Error("expected product allergens when the user declared allergies")
	}
}

func TestProductSummary_NutrimentBlockOnlyPresentFields(t *testing.T) {
	out := ProductSummary(SummaryInput{Product: testProduct(), Language: "english"})

	if !strings.Contains(out, "Calories: 46 kcal") {
		t.Error("expected calories line")
	}
	if !strings.Contains(out, "Sugars: 3.4g") {
		t.Error("expected sugars line")
	}
	if strings.Contains(out, "Protein:") {
		t.Error("absent nutrient fields must not be rendered")
	}
}

func TestProductSummary_QualityBlock(t *testing.T) {
	p := testProduct()
	p.NovaGroup = 4
	p.NutriScore = "e"

	withGoal := ProductSummary(SummaryInput{HealthGoal: "eat healthier", Product: p, Language: "english"})
	if !strings.Contains(withGoal, "<product_quality>") {
		t.Error("expected quality block when health goal set and product flagged")
	}
	if !strings.Contains(withGoal, "NOVA group 4") || !strings.Contains(withGoal, "Nutri-Score grade: E") {
		t.Error("expected both quality flags in the block")
	}

	withoutGoal := ProductSummary(SummaryInput{Product: p, Language: "english"})
	if strings.Contains(withoutGoal, "<product_quality>") {
		t.Error("quality block must be omitted without a health goal")
	}

	cleanProduct := testProduct()
	goalCleanProduct := ProductSummary(SummaryInput{HealthGoal: "eat healthier", Product: cleanProduct, Language: "english"})
	if strings.Contains(goalCleanProduct, "<product_quality>") {
		t.Error("quality block must be omitted when the product triggers no flag")
	}
}

func TestProductSummary_ClosingFormat(t *testing.T) {
	out := ProductSummary(SummaryInput{Product: testProduct(), Language: "german"})

	if !strings.Contains(out, "in german") {
		t.Error("expected the requested output language in the closing instruction")
	}
	if !strings.Contains(out, "#### Benefits") || !strings.Contains(out, "#### Disadvantages") {
		t.Error("expected the fixed Benefits/Disadvantages sections")
	}
}

func TestProductSummary_Deterministic(t *testing.T) {
	in := SummaryInput{
		Allergies:   "milk",
		Preferences: "vegan",
		Product:     testProduct(),
		Language:    "english",
	}
	if ProductSummary(in) != ProductSummary(in) {
		t.Error("prompt builder must be deterministic")
	}
}

func TestRecipeSteps(t *testing.T) {
	out := RecipeSteps("spanish", domain.Recipe{
		Title:               "Tortilla",
		Description:         "Classic potato omelette",
		Ingredients:         "eggs, potatoes, olive oil",
		OptionalIngredients: "onion",
	})

	if !strings.Contains(out, "Recipe title: Tortilla") {
		t.Error("expected recipe title")
	}
	if !strings.Contains(out, "eggs, potatoes, olive oil onion") {
		t.Error("expected optional ingredients appended to available ingredients")
	}
	if !strings.Contains(out, "Response must be in spanish.") {
		t.Error("expected response language")
	}
	if !strings.Contains(out, "<thinking></thinking>") {
		t.Error("expected the thinking-block instruction")
	}
	for _, step := range []string{"### Step 1:", "### Step 2:", "### Step 3:"} {
		if !strings.Contains(out, step) {
			t.Errorf("expected template block %q", step)
		}
	}
}
