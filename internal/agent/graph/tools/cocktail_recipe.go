package tools

import (
	"context"
)

const ToolCocktailRecipe = "Cocktail Recipe Finder"

const cocktailRecipeDesc = `It MUST be used whenever the recipe of a cocktail or the instructions for making a cocktail is needed. ` +
	`The specific name of the cocktail must be available. ` +
	`The format of the input should just be the name of the cocktail such as "Gin and Tonic" or "Margarita"`

// RecipeLookup renders a cocktail recipe, or a not-found message, by name.
type RecipeLookup interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// CocktailRecipe looks recipes up in TheCocktailDB.
func CocktailRecipe(l RecipeLookup) Tool {
	return NewTextTool(ToolCocktailRecipe, cocktailRecipeDesc, l.Lookup)
}
