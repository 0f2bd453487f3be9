package selfquery

import (
	"encoding/json"
	"strings"

	"github.com/cyber-bartender/server/internal/retrieval/vectorstore"
)

// AttributeInfo documents one filterable metadata field for the query
// constructor model.
type AttributeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	// Sentinel marks "value unavailable". Range comparisons never match it.
	Sentinel *float64 `json:"-"`
}

// DocumentContentDescription describes what the indexed text is.
const DocumentContentDescription = "Description of a beer"

func sentinel(v float64) *float64 { return &v }

// BeerAttributes are the metadata fields of the beer corpus with their
// distribution statistics.
var BeerAttributes = []AttributeInfo{
	{
		Name: vectorstore.MetaABV,
		Description: "The alcohol content of the beer in ABV percent. " +
			"The mean of ABV is 6, and the standard deviation of ABV is 1.53. " +
			"The min, 25 percentile, 50 percentile, 75 percentile, and max of ABV are 0, 5, 5.6, 6.8, and 22. " +
			"The value is set to -1 if the ABV is not available.",
		Type:     "float",
		Sentinel: sentinel(vectorstore.Unavailable),
	},
	{
		Name: vectorstore.MetaIBU,
		Description: "The bitterness of the beer measured in IBU (International Bittering Unit). " +
			"The mean of IBU is 39.69, and the standard deviation of IBU is 24.14. " +
			"The min, 25 percentile, 50 percentile, 75 percentile, and max of IBU is 0, 21, 33, 55, and 200. " +
			"The value is set to -1 if the IBU is not available.",
		Type:     "float",
		Sentinel: sentinel(vectorstore.Unavailable),
	},
	{
		Name: vectorstore.MetaSRM,
		Description: "The Standard Reference Method (SRM) value of the beer. " +
			"The mean of SRM is 14.44, and the standard deviation is 12.4. " +
			"The min, 25 percentile, 50 percentile, 75 percentile, and max of SRM is 1, 5, 8, 20, and 41. " +
			"The value is set to -1 if the SRM is not available.",
		Type:     "integer",
		Sentinel: sentinel(vectorstore.Unavailable),
	},
}

// Schema indexes attributes by name.
type Schema map[string]AttributeInfo

// NewSchema builds a lookup table over attrs.
func NewSchema(attrs []AttributeInfo) Schema {
	s := make(Schema, len(attrs))
	for _, a := range attrs {
		s[a.Name] = a
	}
	return s
}

// describeAttributes renders the attribute block of the constructor prompt.
func describeAttributes(attrs []AttributeInfo) string {
	m := make(map[string]map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name] = map[string]string{"description": a.Description, "type": a.Type}
	}
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(m); err != nil {
		return ""
	}
	return strings.TrimSpace(b.String())
}
