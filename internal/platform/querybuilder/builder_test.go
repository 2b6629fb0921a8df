package querybuilder

import (
	"reflect"
	"testing"
)

func TestSelect_WhereOrderLimit(t *testing.T) {
	t.Parallel()

	query, args, err := Select("id", "name").
		From("recurring_jobs").
		Where(Eq("is_active", true), Lte("next_run_at", 42)).
		OrderBy("next_run_at ASC").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("ToSQL: %v", err)
	}

	want := "SELECT id, name FROM recurring_jobs WHERE is_active = $1 AND next_run_at <= $2 ORDER BY next_run_at ASC LIMIT 10"
	if query != want {
		t.Fatalf("unexpected query:\n got=%q\nwant=%q", query, want)
	}
	if !reflect.DeepEqual(args, []any{true, 42}) {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestSelect_NullAndInConditions(t *testing.T) {
	t.Parallel()

	query, args, err := Select("*").
		From("deal_disputes").
		Where(
			IsNull("sla_breached_at"),
			IsNotNull("sla_due_at"),
			In("status", []any{"OPEN", "ESCALATED"}),
		).
		ToSQL()
	if err != nil {
		t.Fatalf("ToSQL: %v", err)
	}

	want := "SELECT * FROM deal_disputes WHERE sla_breached_at IS NULL AND sla_due_at IS NOT NULL AND status IN ($1, $2)"
	if query != want {
		t.Fatalf("unexpected query: %q", query)
	}
	if len(args) != 2 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestSelect_EmptyInNeverMatches(t *testing.T) {
	t.Parallel()

	query, _, err := Select("id").From("t").Where(In("status", nil)).ToSQL()
	if err != nil {
		t.Fatalf("ToSQL: %v", err)
	}
	if query != "SELECT id FROM t WHERE 1=0" {
		t.Fatalf("unexpected query: %q", query)
	}
}

func TestUpdate_SetExprRewritesPlaceholders(t *testing.T) {
	t.Parallel()

	query, args, err := Update("escrow_accounts").
		Set("status", "RELEASED").
		SetExpr("released_amount", "released_amount + ?", 60.0).
		Where(Eq("id", "acc-1")).
		ToSQL()
	if err != nil {
		t.Fatalf("ToSQL: %v", err)
	}

	want := "UPDATE escrow_accounts SET status = $1, released_amount = released_amount + $2 WHERE id = $3"
	if query != want {
		t.Fatalf("unexpected query: %q", query)
	}
	if !reflect.DeepEqual(args, []any{"RELEASED", 60.0, "acc-1"}) {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestInsert_SuffixAndMultiRow(t *testing.T) {
	t.Parallel()

	query, args, err := InsertInto("deal_dispute_evidence").
		Columns("id", "dispute_id").
		Values("e1", "d1").
		Values("e2", "d1").
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSQL()
	if err != nil {
		t.Fatalf("ToSQL: %v", err)
	}

	want := "INSERT INTO deal_dispute_evidence (id, dispute_id) VALUES ($1, $2), ($3, $4) ON CONFLICT (id) DO NOTHING"
	if query != want {
		t.Fatalf("unexpected query: %q", query)
	}
	if len(args) != 4 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestInsert_RowArityMismatch(t *testing.T) {
	t.Parallel()

	_, _, err := InsertInto("t").Columns("a", "b").Values("only-one").ToSQL()
	if err == nil {
		t.Fatal("expected arity error")
	}
}
