package domain

// LineProblem marks a settlement line whose stock could not be resolved. A
// problem line is degraded (available 0, unsatisfied) instead of aborting the
// whole check, so the caller sees the complete picture in one pass.
type LineProblem string

const (
	ProblemNone              LineProblem = ""
	ProblemComponentNotFound LineProblem = "component_not_found"
	ProblemLocationNotFound  LineProblem = "location_not_found"
)

// SettlementLine is one component/location requirement of a production run,
// annotated with the stock observed at check time.
type SettlementLine struct {
	ComponentID   string
	ComponentName string
	LocationID    string
	LocationName  string
	Required      int
	Available     int
	Satisfied     bool
	Problem       LineProblem
}

// DisplayName falls back to the component ID when the name was not resolved.
func (l SettlementLine) DisplayName() string {
	if l.ComponentName != "" {
		return l.ComponentName
	}
	return l.ComponentID
}

// Shortfall is the quantity that would have to be ordered to satisfy the line.
func (l SettlementLine) Shortfall() int {
	if l.Available >= l.Required {
		return 0
	}
	return l.Required - l.Available
}

// StockCheck is the result of checking a production request against the
// ledger. AllSatisfied is the AND over every line, with problem lines counted
// as unsatisfied.
type StockCheck struct {
	ProjectID    string
	ProjectName  string
	Multiplier   int
	Lines        []SettlementLine
	AllSatisfied bool
}

// Unsatisfied returns the resolvable lines that lack stock, the set shown to
// the operator before a forced run.
func (c *StockCheck) Unsatisfied() []SettlementLine {
	var out []SettlementLine
	for _, l := range c.Lines {
		if !l.Satisfied && l.Problem == ProblemNone {
			out = append(out, l)
		}
	}
	return out
}

// SettlementStatus tracks a single settlement attempt:
// resolved -> checked -> {committed | aborted | awaiting_override -> {force_committed | cancelled}}.
type SettlementStatus string

const (
	StatusResolved         SettlementStatus = "resolved"
	StatusChecked          SettlementStatus = "checked"
	StatusAwaitingOverride SettlementStatus = "awaiting_override"
	StatusCommitted        SettlementStatus = "committed"
	StatusForceCommitted   SettlementStatus = "force_committed"
	StatusAborted          SettlementStatus = "aborted"
	StatusCancelled        SettlementStatus = "cancelled"
)

// StockWrite is one conditional ledger write. The write only applies when the
// entry still holds Expected, which closes the gap between check and commit.
type StockWrite struct {
	ComponentID string
	LocationID  string
	Expected    int
	New         int
}

// StockChange describes a committed quantity, fanned out to notifiers after a
// successful settlement.
type StockChange struct {
	ComponentID string `json:"component_id"`
	LocationID  string `json:"location_id"`
	Quantity    int    `json:"quantity"`
}
