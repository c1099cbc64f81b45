/*
allocation.go - Oldest-debt-first reduction spreading

PURPOSE:
  Given a customer's open debts and a reduction amount, decide which debt
  absorbs how much. This is the sub-algorithm behind decrease adjustments.

ALGORITHM:
  Walk the debts oldest-created first. Each debt absorbs
  min(remaining reduction, debt's remaining amount); stop when the reduction
  reaches zero. Greedy, deterministic, FIFO settlement - not proportional,
  not newest-first.

  The caller pre-checks the total outstanding balance, but the loop also
  fails if the list is exhausted with reduction left over. The two checks
  are redundant on purpose; the loop guard is the invariant of record.

SEE ALSO:
  - engine.go: ApplyManualAdjustment (decrease) drives this
*/
package ledger

// Allocation is one slice of a reduction applied to a single debt.
type Allocation struct {
	DebtID        DebtID
	Amount        Money
	BalanceBefore Money
	BalanceAfter  Money
}

// allocateReduction spreads amount across debts, oldest first. The debts
// slice must already be ordered oldest-created first and contain only open
// debts (OpenDebtsOldestFirst guarantees both).
//
// Returns ErrAmountExceedsBalance if the debts cannot absorb the full
// amount. Never returns a partial result.
func allocateReduction(customerID CustomerID, debts []Debt, amount Money) ([]Allocation, error) {
	remaining := amount
	allocations := make([]Allocation, 0, len(debts))

	for _, d := range debts {
		if !remaining.IsPositive() {
			break
		}
		slice := remaining.Min(d.RemainingAmount)
		if !slice.IsPositive() {
			continue
		}
		allocations = append(allocations, Allocation{
			DebtID:        d.ID,
			Amount:        slice,
			BalanceBefore: d.RemainingAmount,
			BalanceAfter:  d.RemainingAmount.Sub(slice),
		})
		remaining = remaining.Sub(slice)
	}

	if remaining.IsPositive() {
		outstanding := ZeroMoney()
		for _, d := range debts {
			outstanding = outstanding.Add(d.RemainingAmount)
		}
		return nil, &ExceedsBalanceError{
			CustomerID:  customerID,
			Requested:   amount,
			Outstanding: outstanding,
		}
	}

	return allocations, nil
}
