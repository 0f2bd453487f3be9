package tools

// GetAgentTools returns the agent's tools in prompt order.
func GetAgentTools(beers Answerer, recipes RecipeLookup) []Tool {
	return []Tool{
		BeerSearch(beers),
		CocktailRecipe(recipes),
	}
}
