// Package prompt renders the text prompts sent to the generation service.
// All builders are pure functions: same input, same prompt.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/foodanalyzer/food-analyzer/internal/domain"
)

// ThinkingCloseTag closes the reasoning block the recipe prompt asks the
// model to produce. The relay withholds output until it has been seen.
const ThinkingCloseTag = "</thinking>"

// AnswerStopSequence truncates recipe generation if the model closes an
// answer block of its own.
const AnswerStopSequence = "</answer>"

// SummaryInput carries everything the product-summary prompt depends on.
// Allergies and Preferences are the comma-joined active key names; empty
// strings mean the user did not set that aspect.
type SummaryInput struct {
	Allergies   string
	Preferences string
	HealthGoal  string
	Religion    string
	Product     *domain.Product
	Language    string
}

type instruction struct {
	when bool
	text string
}

// ProductSummary builds the nutrition-summary prompt. Instruction steps are
// included and numbered only for the aspects the user actually supplied, so
// the model is never asked about unset fields.
func ProductSummary(in SummaryInput) string {
	p := in.Product

	instructions := []instruction{
		{in.Allergies != "", fmt.Sprintf("CRITICAL: Check if any product allergens match the user's allergies (%s). If there is a match, prominently warn the user.", in.Allergies)},
		{in.Preferences != "", fmt.Sprintf("Check if product labels match dietary preferences (%s). Use labels for direct matching, or analyze categories and ingredients.", in.Preferences)},
		{in.HealthGoal != "", fmt.Sprintf("Use nutritional data to assess if the product aligns with the health goal: %s.", in.HealthGoal)},
		{in.Religion != "", fmt.Sprintf("Check if product labels match religious requirement: %s.", in.Religion)},
	}

	var b strings.Builder
	b.WriteString("You are a nutrition expert providing recommendations about a specific product.\n\nYour task:\n")

	n := 0
	for _, ins := range instructions {
		if !ins.when {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, ins.text)
	}

	b.WriteString("- Present three nutritional benefits and three nutritional disadvantages for the product based on actual nutritional values.\n")
	b.WriteString("If the user's information is not provided or is empty, offer general nutritional advice based on the product's nutritional data.\n")
	b.WriteString("IMPORTANT: Only mention allergens, dietary preferences, health goals, or religious requirements if the user has specified them. Do not discuss aspects the user hasn't set.\n")

	b.WriteString("\nProvide recommendation for the following product:\n")
	fmt.Fprintf(&b, "<product_name>%s</product_name>\n", p.Name)
	fmt.Fprintf(&b, "<product_ingredients>%s</product_ingredients>\n", p.Ingredients)

	if in.Allergies != "" && len(p.Allergens) > 0 {
		fmt.Fprintf(&b, "<product_allergens>%s</product_allergens>\n", strings.Join(p.Allergens, ", "))
	}
	if len(p.Labels) > 0 {
		fmt.Fprintf(&b, "<product_labels>%s</product_labels>\n", strings.Join(p.Labels, ", "))
	}
	if p.Categories != "" {
		fmt.Fprintf(&b, "<product_categories>%s</product_categories>\n", p.Categories)
	}
	if block := nutrimentBlock(p.Nutriments); block != "" {
		b.WriteString(block)
	}
	if block := qualityBlock(in.HealthGoal, p); block != "" {
		b.WriteString(block)
	}

	if userContext := userContextBlock(in); userContext != "" {
		b.WriteString("\nFor the user:\n")
		b.WriteString(userContext)
	}

	fmt.Fprintf(&b, "\nProvide the response in the third person, in %s, skip the preamble, disregard any content at the end and provide only the response in this Markdown format:\n\n", in.Language)
	b.WriteString("Describe allergen warnings (if any), dietary label compatibility, religious requirement compatibility, health goal compatibility, dietary preference compatibility, and recommendation here combined in one single short paragraph\n\n")
	b.WriteString("#### Benefits title here\n- Describe benefits here\n\n")
	b.WriteString("#### Disadvantages title here\n- Describe disadvantages here\n")

	return b.String()
}

// nutrimentFields lists the nutrient values shown to the model, in the order
// they are rendered.
var nutrimentFields = []struct {
	key   string
	label string
	unit  string
}{
	{"energy-kcal_100g", "Calories", " kcal"},
	{"carbohydrates_100g", "Carbohydrates", "g"},
	{"sugars_100g", "Sugars", "g"},
	{"fat_100g", "Fat", "g"},
	{"saturated-fat_100g", "Saturated Fat", "g"},
	{"proteins_100g", "Protein", "g"},
	{"fiber_100g", "Fiber", "g"},
	{"salt_100g", "Salt", "g"},
}

func nutrimentBlock(nutriments map[string]float64) string {
	if len(nutriments) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<nutrition_per_100g>\n")
	found := false
	for _, f := range nutrimentFields {
		v, ok := nutriments[f.key]
		if !ok {
			continue
		}
		found = true
		fmt.Fprintf(&b, "%s: %s%s\n", f.label, strconv.FormatFloat(v, 'f', -1, 64), f.unit)
	}
	b.WriteString("</nutrition_per_100g>\n")

	if !found {
		return ""
	}
	return b.String()
}

// qualityBlock flags ultra-processed and low Nutri-Score products, but only
// when the user stated a health goal the flags are relevant to.
func qualityBlock(healthGoal string, p *domain.Product) string {
	if healthGoal == "" {
		return ""
	}

	var lines []string
	if p.UltraProcessed() {
		lines = append(lines, fmt.Sprintf("Classified as ultra-processed (NOVA group %d)", p.NovaGroup))
	}
	if p.LowNutriScore() {
		lines = append(lines, fmt.Sprintf("Low Nutri-Score grade: %s", strings.ToUpper(p.NutriScore)))
	}
	if len(lines) == 0 {
		return ""
	}
	return fmt.Sprintf("<product_quality>\n%s\n</product_quality>\n", strings.Join(lines, "\n"))
}

func userContextBlock(in SummaryInput) string {
	var b strings.Builder
	if in.Allergies != "" {
		fmt.Fprintf(&b, "<user_allergies>%s</user_allergies>\n", in.Allergies)
	}
	if in.HealthGoal != "" {
		fmt.Fprintf(&b, "<user_health_goal>%s</user_health_goal>\n", in.HealthGoal)
	}
	if in.Preferences != "" {
		fmt.Fprintf(&b, "<user_dietary_preferences>%s</user_dietary_preferences>\n", in.Preferences)
	}
	if in.Religion != "" {
		fmt.Fprintf(&b, "<user_religious_requirement>%s</user_religious_requirement>\n", in.Religion)
	}
	return b.String()
}

// RecipeSystem is the system prompt for recipe step generation.
const RecipeSystem = "Your task is to generate personalized recipe ideas based on the user's input of available ingredients and dietary preferences. Use this information to suggest a variety of creative and delicious recipes that can be made using the given ingredients while accommodating the user's dietary needs, if any are mentioned. For each recipe, provide a brief description, a list of required ingredients, and a simple set of instructions. Ensure that the recipes are easy to follow, nutritious, and can be prepared with minimal additional ingredients or equipment."

// RecipeSteps builds the step-by-step cooking prompt. The model is asked to
// reason inside a thinking block first; only what follows the closing tag is
// shown to the caller.
func RecipeSteps(language string, r domain.Recipe) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Recipe title: %s\n", r.Title)
	fmt.Fprintf(&b, "Recipe description: %s\n", r.Description)
	fmt.Fprintf(&b, "Available ingredients: %s %s\n", r.Ingredients, r.OptionalIngredients)

	b.WriteString(`
Answer must be in the following markdown format:
### Step 1: [Step Title]
- Action 1: [Action description]
- Action 2: [Action description]

**Ingredients:** [Ingredient 1], [Ingredient 2], [Ingredient 3]

### Step 2: [Step Title]
- Action 1: [Action description]
- Action 2: [Action description]

**Ingredients:** [Ingredient 1], [Ingredient 2]

### Step 3: [Step Title]
- Action 1: [Action description]
- Action 2: [Action description]

**Ingredients:** [Ingredient 1], [Ingredient 2], [Ingredient 3], [Ingredient 4]

Describe the actions in each step with detailed but concise descriptions, including ingredients needed, quantities, time, and any appliances required. Ensure your tone is engaging and friendly.

Only use ingredients present in the provided recipe.

`)
	fmt.Fprintf(&b, "Response must be in %s.\n\n", language)
	b.WriteString("Think step by step and elaborate your thoughts inside <thinking></thinking> then answer in a markdown format")

	return b.String()
}
