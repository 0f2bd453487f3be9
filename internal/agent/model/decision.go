package model

// Decision is the parsed outcome of one decision prompt. It is exactly one of
// DecisionTool, DecisionFinal or DecisionParseFailure.
type Decision interface {
	decision()
}

// DecisionTool requests one tool invocation.
type DecisionTool struct {
	Tool  string
	Input string
	Log   string
}

// DecisionFinal carries the answer shown to the user.
type DecisionFinal struct {
	Answer string
	Log    string
}

// DecisionParseFailure is a response that could not be acted on.
type DecisionParseFailure struct {
	Reason   string
	Response string
}

func (DecisionTool) decision()         {}
func (DecisionFinal) decision()        {}
func (DecisionParseFailure) decision() {}
