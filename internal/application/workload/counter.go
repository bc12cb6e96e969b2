// Package workload counts the cases a worker currently holds.
package workload

import (
	"context"
	"fmt"

	"github.com/garyjia/caseflow/internal/application/port"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

// Counter reads active-case counts from the authoritative store.
// Counts are never cached: every decision sees the store as it is now.
type Counter struct {
	cases port.CaseRepository
}

// NewCounter creates a workload counter over the case repository
func NewCounter(cases port.CaseRepository) *Counter {
	return &Counter{cases: cases}
}

// ActiveCases returns how many PENDING or IN_PROGRESS cases the worker holds
func (c *Counter) ActiveCases(ctx context.Context, workerID string) (int, error) {
	return c.ActiveCasesExcluding(ctx, workerID, "")
}

// ActiveCasesExcluding is ActiveCases with one case left out of the count
func (c *Counter) ActiveCasesExcluding(ctx context.Context, workerID, caseID string) (int, error) {
	n, err := c.cases.CountActiveByAssignee(ctx, workerID, caseID)
	if err != nil {
		return 0, fmt.Errorf("%w: count active cases for %s: %w", domainwf.ErrStoreUnavailable, workerID, err)
	}
	return n, nil
}
