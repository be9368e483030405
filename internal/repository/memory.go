package repository

import (
	"context"
	"sort"
	"sync"

	"hvacbook/internal/domain"
)

// MemoryReservationStore keeps reservations for the life of the process.
// Everything is lost on restart.
type MemoryReservationStore struct {
	mu       sync.Mutex
	reserved map[string]map[string]struct{}
}

func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{
		reserved: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryReservationStore) Reserved(ctx context.Context, date string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	times := make([]string, 0, len(r.reserved[date]))
	for t := range r.reserved[date] {
		times = append(times, t)
	}
	sort.Strings(times)
	return times, nil
}

func (r *MemoryReservationStore) TryReserve(ctx context.Context, date, clock string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	day, ok := r.reserved[date]
	if !ok {
		day = make(map[string]struct{})
		r.reserved[date] = day
	}
	if _, taken := day[clock]; taken {
		return domain.ErrConflict
	}
	day[clock] = struct{}{}
	return nil
}
