package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aquaflow/aquaflow/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) LatestBalance(ctx context.Context, tenantID, courierID int64) (int64, error) {
	return (&memoryTx{repo: r}).LastBalance(ctx, tenantID, courierID)
}

func (r *memoryRepo) ListEntries(ctx context.Context, tenantID, courierID int64, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[i]
		if e.TenantID == tenantID && e.CourierID == courierID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (tx *memoryTx) LockPartition(ctx context.Context, tenantID, courierID int64) error {
	return nil
}

func (tx *memoryTx) LastBalance(ctx context.Context, tenantID, courierID int64) (int64, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	for i := len(tx.repo.entries) - 1; i >= 0; i-- {
		e := tx.repo.entries[i]
		if e.TenantID == tenantID && e.CourierID == courierID {
			return e.Balance, nil
		}
	}
	return 0, nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries = append(tx.repo.entries, entry)
	return entry.ID, nil
}

func record(t *testing.T, svc *Service, op Operation, in, out int64) Entry {
	t.Helper()
	entry, err := svc.RecordMovement(context.Background(), MovementInput{
		TenantID:  1,
		CourierID: 40,
		Operation: op,
		UnitsIn:   in,
		UnitsOut:  out,
	})
	require.NoError(t, err)
	return entry
}

func TestBalanceFlooredAtZero(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, nil, nil)

	e := record(t, svc, OpReceivedFromOwner, 10, 0)
	require.EqualValues(t, 10, e.Balance)

	e = record(t, svc, OpSoldToClient, 0, 4)
	require.EqualValues(t, 6, e.Balance)

	// Selling more than on hand clamps instead of going negative.
	e = record(t, svc, OpSoldToClient, 0, 9)
	require.EqualValues(t, 0, e.Balance)

	e = record(t, svc, OpAdjustment, 5, 2)
	require.EqualValues(t, 3, e.Balance)
}

func TestEmptyReturnedLeavesBalance(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil, nil)

	record(t, svc, OpReceivedFromOwner, 7, 0)
	e := record(t, svc, OpEmptyReturned, 0, 0)
	require.EqualValues(t, 7, e.Balance)
	require.Zero(t, e.UnitsIn)
	require.Zero(t, e.UnitsOut)

	// The audit row is persisted even though nothing moved.
	require.Len(t, repo.entries, 2)
}

func TestLegValidation(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, nil, nil)
	ctx := context.Background()

	cases := []struct {
		name    string
		op      Operation
		in, out int64
	}{
		{"receive with out leg", OpReceivedFromOwner, 5, 1},
		{"receive without units", OpReceivedFromOwner, 0, 0},
		{"sell with in leg", OpSoldToClient, 2, 3},
		{"sell without units", OpSoldToClient, 0, 0},
		{"return with units", OpEmptyReturned, 1, 0},
		{"adjustment without legs", OpAdjustment, 0, 0},
		{"negative units", OpAdjustment, -1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordMovement(ctx, MovementInput{
				TenantID: 1, CourierID: 40, Operation: tc.op, UnitsIn: tc.in, UnitsOut: tc.out,
			})
			require.ErrorIs(t, err, ErrLegMismatch)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	_, err := svc.RecordMovement(ctx, MovementInput{TenantID: 1, CourierID: 40, Operation: "restock", UnitsIn: 1})
	require.ErrorIs(t, err, ErrInvalidOperation)
}

type fakeIdempotency struct {
	seen map[string]bool
}

func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	f.seen[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, key string) error {
	delete(f.seen, key)
	return nil
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil, &fakeIdempotency{seen: map[string]bool{}})
	ctx := context.Background()

	input := MovementInput{
		TenantID: 1, CourierID: 40,
		Operation: OpReceivedFromOwner, UnitsIn: 5,
		IdempotencyKey: "load-2026-08-29-a",
	}
	_, err := svc.RecordMovement(ctx, input)
	require.NoError(t, err)

	_, err = svc.RecordMovement(ctx, input)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, repo.entries, 1)
}

func TestPartitionsIndependent(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{TenantID: 1, CourierID: 40, Operation: OpReceivedFromOwner, UnitsIn: 8})
	require.NoError(t, err)
	e, err := svc.RecordMovement(ctx, MovementInput{TenantID: 1, CourierID: 41, Operation: OpReceivedFromOwner, UnitsIn: 3})
	require.NoError(t, err)
	require.EqualValues(t, 3, e.Balance)

	balance, err := svc.LatestBalance(ctx, 1, 40)
	require.NoError(t, err)
	require.EqualValues(t, 8, balance)
}
