package models

// Rule maps a volatility threshold to an operator instruction.
// The rule table is user-edited and replaced wholesale on save;
// duplicate thresholds are allowed.
type Rule struct {
	Threshold float64 `json:"threshold"`
	Action    string  `json:"action"`
}

// Advisory is the textual recommendation produced by evaluating
// the rule table or the sentiment cutoffs.
type Advisory struct {
	Triggered bool    `json:"triggered"`
	Threshold float64 `json:"threshold,omitempty"`
	Message   string  `json:"message"`
}
