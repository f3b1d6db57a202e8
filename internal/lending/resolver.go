// internal/lending/resolver.go
package lending

// Resolve derives whether bookID is currently held by the owner of
// transactions. The list must be the user's full log ordered by
// transaction date, most recent first. The second result is false when the
// user has no open loan on the book.
func Resolve(transactions []Transaction, bookID string) (Status, bool) {
	var latest *Transaction
	hasLaterReturn := false

	for i := range transactions {
		tx := &transactions[i]
		if tx.BookID != bookID {
			continue
		}
		if latest == nil {
			latest = tx
			continue
		}
		// Only possible when the backend hands us out-of-order rows.
		if tx.Action == ActionReturn && tx.TransactionDate.After(latest.TransactionDate) {
			hasLaterReturn = true
		}
	}

	if latest == nil || hasLaterReturn || !latest.Action.opensLoan() {
		return Status{}, false
	}

	status := Status{Held: true}
	if latest.DueDate != nil {
		due := *latest.DueDate
		status.DueDate = &due
	}
	return status, true
}

// ResolveAll resolves every book that appears in transactions in a single
// pass and returns only the ones currently held. It agrees with Resolve for
// each book.
func ResolveAll(transactions []Transaction) map[string]Status {
	latest := make(map[string]*Transaction)
	laterReturn := make(map[string]bool)

	for i := range transactions {
		tx := &transactions[i]
		first, ok := latest[tx.BookID]
		if !ok {
			latest[tx.BookID] = tx
			continue
		}
		if tx.Action == ActionReturn && tx.TransactionDate.After(first.TransactionDate) {
			laterReturn[tx.BookID] = true
		}
	}

	held := make(map[string]Status)
	for bookID, tx := range latest {
		if laterReturn[bookID] || !tx.Action.opensLoan() {
			continue
		}
		status := Status{Held: true}
		if tx.DueDate != nil {
			due := *tx.DueDate
			status.DueDate = &due
		}
		held[bookID] = status
	}
	return held
}
