package nodes

// Node names
const (
	NodeInputConverter = "InputConverter"
	NodeDecisionModel  = "DecisionModel"
	NodeDecisionParser = "DecisionParser"
	NodeToolDispatcher = "ToolDispatcher"
	NodeCorrector      = "Corrector"
	NodeFinalizer      = "Finalizer"
)

const (
	DefaultMaxIterations   = 5
	DefaultMaxParseRetries = 1
)

// User-visible answers for turns that end without a final answer.
const (
	ParseFailureMessage = "I had trouble understanding how to respond. Could you rephrase your question?"
	LoopBoundMessage    = "I'm sorry, I couldn't finish looking into that. Could you try asking in a different way?"
)

// ObservationStop cuts the model off before it invents an observation.
const ObservationStop = "\nObservation:"

// normalizeMaxIterations returns a sane default when the provided value is invalid.
func normalizeMaxIterations(n int) int {
	if n <= 0 {
		return DefaultMaxIterations
	}
	return n
}

// normalizeMaxParseRetries allows zero retries but not a negative count.
func normalizeMaxParseRetries(n int) int {
	if n < 0 {
		return DefaultMaxParseRetries
	}
	return n
}

// MaxRunSteps bounds the graph run for the given loop limits. Every tool
// iteration or retry is one model, parser and dispatcher (or corrector) step.
func MaxRunSteps(maxIterations, maxParseRetries int) int {
	loops := normalizeMaxIterations(maxIterations) + normalizeMaxParseRetries(maxParseRetries)
	return 10 + 3*loops
}
