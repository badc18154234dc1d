package domain

import "time"

type TransactionType string

const (
	TxProductionRun       TransactionType = "Production Run"
	TxForcedProductionRun TransactionType = "Forced Production Run"
	TxCirculationUse      TransactionType = "Circulation - Use"
	TxCirculationReturn   TransactionType = "Circulation - Return"
	TxStockAddition       TransactionType = "Stock Addition"
	TxComponentCreation   TransactionType = "Component Creation"
)

// TransactionRecord is an immutable, append-only audit entry. Details are
// human-readable lines rendered as-is by the log view.
type TransactionRecord struct {
	ID        string
	Type      TransactionType
	Timestamp time.Time
	Details   []string
}
