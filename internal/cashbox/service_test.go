package cashbox

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aquaflow/aquaflow/internal/shared"
	"github.com/aquaflow/aquaflow/internal/tenants"
)

type memoryRepo struct {
	entries map[string][]Entry
	nextID  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[string][]Entry)}
}

func partitionKey(tenantID, actorID int64) string {
	return fmt.Sprintf("%d:%d", tenantID, actorID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) LatestBalance(ctx context.Context, tenantID, actorID int64) (int64, error) {
	rows := r.entries[partitionKey(tenantID, actorID)]
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[len(rows)-1].Balance, nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, tenantID, actorID int64, limit int) ([]Entry, error) {
	rows := r.entries[partitionKey(tenantID, actorID)]
	out := make([]Entry, len(rows))
	copy(out, rows)
	return out, nil
}

func (tx *memoryTx) LockPartition(ctx context.Context, tenantID, actorID int64) error {
	return nil
}

func (tx *memoryTx) LastBalance(ctx context.Context, tenantID, actorID int64) (int64, error) {
	return tx.repo.LatestBalance(ctx, tenantID, actorID)
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	key := partitionKey(entry.TenantID, entry.ActorID)
	tx.repo.entries[key] = append(tx.repo.entries[key], entry)
	return entry.ID, nil
}

func TestBalanceChain(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	moves := []struct {
		kind   MovementKind
		amount int64
	}{
		{KindIncome, 100000},
		{KindIncome, 50000},
		{KindExpense, 30000},
		{KindIncome, 5000},
		{KindExpense, 200000},
	}

	var want int64
	for _, m := range moves {
		entry, err := svc.Append(ctx, AppendInput{
			TenantID: 1, ActorRole: tenants.RoleOwner, ActorID: 7, Kind: m.kind, Amount: m.amount,
		})
		require.NoError(t, err)
		if m.kind == KindIncome {
			want += m.amount
		} else {
			want -= m.amount
		}
		require.Equal(t, want, entry.Balance)
	}

	// Stored balance equals the signed sum of all movements.
	balance, err := svc.LatestBalance(ctx, 1, 7)
	require.NoError(t, err)
	require.Equal(t, want, balance)
	require.EqualValues(t, -75000, balance)
}

func TestPartitionsIndependent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Append(ctx, AppendInput{TenantID: 1, ActorRole: tenants.RoleOwner, ActorID: 7, Kind: KindIncome, Amount: 100})
	require.NoError(t, err)
	entry, err := svc.Append(ctx, AppendInput{TenantID: 1, ActorRole: tenants.RoleManager, ActorID: 8, Kind: KindIncome, Amount: 40})
	require.NoError(t, err)

	// The second partition starts from 0, not from the first partition's balance.
	require.EqualValues(t, 40, entry.Balance)
}

func TestAppendValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Append(ctx, AppendInput{TenantID: 1, ActorRole: tenants.RoleOwner, ActorID: 7, Kind: KindIncome, Amount: 0})
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Append(ctx, AppendInput{TenantID: 1, ActorRole: tenants.RoleOwner, ActorID: 7, Kind: "transfer", Amount: 10})
	require.ErrorIs(t, err, ErrInvalidKind)

	_, err = svc.Append(ctx, AppendInput{TenantID: 1, ActorRole: "client", ActorID: 7, Kind: KindIncome, Amount: 10})
	require.ErrorIs(t, err, ErrInvalidRole)

	// Fail closed: nothing was written.
	entries, err := svc.ListEntries(ctx, 1, 7, 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestApplyArithmetic(t *testing.T) {
	income, expense, balance, err := Apply(500, KindIncome, 200)
	require.NoError(t, err)
	require.EqualValues(t, 200, income)
	require.EqualValues(t, 0, expense)
	require.EqualValues(t, 700, balance)

	income, expense, balance, err = Apply(500, KindExpense, 800)
	require.NoError(t, err)
	require.EqualValues(t, 0, income)
	require.EqualValues(t, 800, expense)
	require.EqualValues(t, -300, balance)

	_, _, _, err = Apply(0, KindIncome, -5)
	require.ErrorIs(t, err, ErrInvalidAmount)
}
