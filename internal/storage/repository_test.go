package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"uangku/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "uangku.db"), nil)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	salary := core.NewIncome("TRX001", "Salary", core.MustAmount("5000000"), core.NewDate(2025, 6, 1), "SALARY", "user001", "Company")
	bill := core.NewExpense("TRX002", "Electricity", core.MustAmount("350000.50"), core.NewDate(2025, 6, 5), "BILLS", "user001", "Bank Transfer")
	early := core.NewExpense("TRX003", "Coffee", core.MustAmount("20"), core.NewDate(2025, 5, 30), "FOOD", "user001", "Cash")
	for _, tx := range []core.Transaction{salary, bill, early} {
		if err := repo.Save(ctx, tx); err != nil {
			t.Fatalf("save %s: %v", tx.ID, err)
		}
	}

	got, err := repo.ListByUser(ctx, "user001")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].ID != "TRX003" || got[1].ID != "TRX001" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got[2].Equal(bill) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got[2], bill)
	}
	if got[1].Source != "Company" || got[2].PaymentMethod != "Bank Transfer" {
		t.Fatalf("variant fields lost: %+v", got)
	}
}

func TestSQLiteRepositoryUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	tx := core.NewExpense("t1", "Lunch", core.MustAmount("10"), core.NewDate(2025, 1, 2), "FOOD", "u", "Cash")
	if err := repo.Save(ctx, tx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, tx); !errors.Is(err, core.ErrDuplicateID) {
		t.Fatalf("expected duplicate id, got %v", err)
	}

	tx.Amount = core.MustAmount("12.75")
	if err := repo.Update(ctx, "t1", tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.ListByUser(ctx, "u")
	if len(got) != 1 || !got[0].Amount.Equal(core.MustAmount("12.75")) {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := repo.Delete(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if err := repo.Update(ctx, "t1", tx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestSQLiteRepositoryRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	bad := core.NewExpense("t1", "", core.MustAmount("1"), core.NewDate(2025, 1, 2), "FOOD", "u", "Cash")
	if err := repo.Save(context.Background(), bad); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}
