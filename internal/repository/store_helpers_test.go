package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hvacbook/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertSingleWinner races n callers on the same pair and expects one success.
func assertSingleWinner(t *testing.T, store domain.ReservationStore, n int) {
	t.Helper()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, n)
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- store.TryReserve(ctx, "2025-06-02", "12:00")
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	successCount, conflictCount := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, domain.ErrConflict):
			conflictCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successCount, "exactly one reservation should succeed")
	assert.Equal(t, n-1, conflictCount, "all other callers should see a conflict")

	got, err := store.Reserved(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"12:00"}, got)
}
