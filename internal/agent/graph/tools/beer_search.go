package tools

import (
	"context"
)

const ToolBeerSearch = "Beer Search"

const beerSearchDesc = `It can be helpful to search for beers. The input should be phrased like ` +
	`"Which beer has a bitter taste with high alcohol content?", "Can you describe Beer XYZ in details?", ` +
	`or "Which beers are Porter beers?"`

// Answerer answers a free-text question about the beer corpus.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// BeerSearch answers beer questions through self-querying retrieval.
func BeerSearch(a Answerer) Tool {
	return NewTextTool(ToolBeerSearch, beerSearchDesc, a.Answer)
}
