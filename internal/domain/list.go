package domain

// TransactionListResult captures paginated transaction results.
type TransactionListResult struct {
	Items []TransactionRecord
	Total int64
}
