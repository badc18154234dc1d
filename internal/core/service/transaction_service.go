package service

import (
	"context"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/port"
)

const defaultTransactionLimit = 50

// TransactionService is the read side of the transaction log.
type TransactionService struct {
	txlog port.TransactionLog
}

func NewTransactionService(txlog port.TransactionLog) *TransactionService {
	return &TransactionService{txlog: txlog}
}

// Recent returns up to limit records, newest first.
func (s *TransactionService) Recent(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	return s.txlog.List(ctx, limit)
}
