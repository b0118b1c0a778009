package querybuilder

import (
	"strings"
	"testing"
	"time"
)

func TestSelectBuilder(t *testing.T) {
	t.Parallel()

	query, args, err := Select("series_id", "total_drivers").
		From("series_weekly_stats").
		Where(Eq("season_year", 2025), Eq("race_week", 3)).
		OrderBy("total_drivers DESC").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	want := "SELECT series_id, total_drivers FROM series_weekly_stats WHERE season_year = $1 AND race_week = $2 ORDER BY total_drivers DESC LIMIT 10"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if len(args) != 2 || args[0] != 2025 || args[1] != 3 {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilder_ForUpdate(t *testing.T) {
	t.Parallel()

	query, _, err := Select("account_id", "refresh_token").
		From("admin_accounts").
		Where(Eq("account_id", "admin-1")).
		ForUpdate().
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}
	if !strings.HasSuffix(query, "WHERE account_id = $1 FOR UPDATE") {
		t.Fatalf("expected trailing lock clause, got %s", query)
	}
}

func TestSelectBuilder_RequiresTableAndColumns(t *testing.T) {
	t.Parallel()

	if _, _, err := Select().From("admin_accounts").ToSQL(); err == nil {
		t.Fatalf("expected error without columns")
	}
	if _, _, err := Select("account_id").ToSQL(); err == nil {
		t.Fatalf("expected error without table")
	}
}

func TestExpr_NumbersPlaceholdersAfterPreviousConditions(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2025, time.July, 2, 20, 0, 0, 0, time.UTC)
	query, args, err := Select("session_id").
		From("series_weekly_stats").
		Where(Eq("series_id", 7), Expr("updated_at >= ? AND total_drivers > ?", cutoff, 0), Expr("official_session = TRUE")).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	want := "SELECT session_id FROM series_weekly_stats WHERE series_id = $1 AND updated_at >= $2 AND total_drivers > $3 AND official_session = TRUE"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if len(args) != 3 || args[1] != cutoff {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilder_MultiRowWithConflict(t *testing.T) {
	t.Parallel()

	query, args, err := InsertInto("series_weekly_stats").
		Columns("session_id", "total_drivers").
		Values(int64(1001), 40).
		Values(int64(1002), 12).
		OnConflict("ON CONFLICT (session_id) DO NOTHING").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	want := "INSERT INTO series_weekly_stats (session_id, total_drivers) VALUES ($1, $2), ($3, $4) ON CONFLICT (session_id) DO NOTHING"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if len(args) != 4 || args[2] != int64(1002) {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilder_RejectsRaggedRow(t *testing.T) {
	t.Parallel()

	_, _, err := InsertInto("series_weekly_stats").
		Columns("session_id", "total_drivers").
		Values(int64(1001)).
		ToSQL()
	if err == nil {
		t.Fatalf("expected error for short row")
	}
}

func TestUpdateBuilder(t *testing.T) {
	t.Parallel()

	query, args, err := Update("admin_accounts").
		Set("access_token", "access-v2").
		SetExpr("updated_at", "NOW()").
		Where(Eq("account_id", "admin-1")).
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	want := "UPDATE admin_accounts SET access_token = $1, updated_at = NOW() WHERE account_id = $2"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if len(args) != 2 || args[0] != "access-v2" || args[1] != "admin-1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestUpdateBuilder_RequiresWhere(t *testing.T) {
	t.Parallel()

	if _, _, err := Update("admin_accounts").Set("access_token", "x").ToSQL(); err == nil {
		t.Fatalf("expected unscoped update to be rejected")
	}
}

type statRow struct {
	SessionID    int64  `db:"session_id"`
	TotalDrivers int    `db:"total_drivers,omitempty"`
	SeriesName   string `db:"-"`
	internal     int
}

func TestInsertModels(t *testing.T) {
	t.Parallel()

	rows := []statRow{
		{SessionID: 1001, TotalDrivers: 40, SeriesName: "ignored", internal: 1},
		{SessionID: 1002, TotalDrivers: 12},
	}
	query, args, err := InsertModels("series_weekly_stats", rows, "")
	if err != nil {
		t.Fatalf("build insert models: %v", err)
	}

	want := "INSERT INTO series_weekly_stats (session_id, total_drivers) VALUES ($1, $2), ($3, $4)"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if len(args) != 4 || args[0] != int64(1001) || args[3] != 12 {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertModel_RejectsNonStruct(t *testing.T) {
	t.Parallel()

	var nilRow *statRow
	cases := map[string]any{
		"nil pointer": nilRow,
		"scalar":      42,
		"no columns":  struct{ Name string }{Name: "x"},
	}
	for name, model := range cases {
		model := model
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := InsertModel("series_weekly_stats", model, ""); err == nil {
				t.Fatalf("expected error for %T", model)
			}
		})
	}
}

func TestInsertModels_Empty(t *testing.T) {
	t.Parallel()

	if _, _, err := InsertModels[statRow]("series_weekly_stats", nil, ""); err == nil {
		t.Fatalf("expected error for empty batch")
	}
}
