package model

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Do not access AppState directly from outside handlers. For persistence,
//     use repositories/services (e.g., MessagesManager).
type AppState struct {
	ConversationID string
	Input          string
	ChatHistory    string           // rendered memory, fixed for the whole turn
	Scratchpad     []ScratchpadStep // tool steps taken this turn
	Iterations     int              // tool dispatches this turn
	ParseRetries   int              // corrective re-prompts this turn
	Correction     *Correction      // set by the corrector, cleared on the next good decision

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// ScratchpadStep is one Thought/Action/Action Input/Observation cycle.
type ScratchpadStep struct {
	Tool        string
	Input       string
	Log         string // model text that requested the action
	Observation string
}

// Correction asks the model to restate a response that did not follow the
// decision format.
type Correction struct {
	Response string
	Reason   string
}

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}
