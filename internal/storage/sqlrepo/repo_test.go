package sqlrepo

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func TestDiffIDs(t *testing.T) {
	cases := []struct {
		name          string
		current, want []int64
		add, remove   []int64
	}{
		{"empty to set", nil, []int64{3, 1}, []int64{1, 3}, nil},
		{"set to empty", []int64{2, 1}, nil, nil, []int64{1, 2}},
		{"delta", []int64{1, 2, 3}, []int64{3, 4, 4, 5}, []int64{4, 5}, []int64{1, 2}},
		{"unchanged", []int64{1, 2}, []int64{2, 1}, nil, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			add, remove := diffIDs(c.current, c.want)
			if !reflect.DeepEqual(add, c.add) || !reflect.DeepEqual(remove, c.remove) {
				t.Fatalf("add=%v remove=%v, want add=%v remove=%v", add, remove, c.add, c.remove)
			}
		})
	}
}

// sql.Open does not dial, so these repos only build statements.
func repoFor(t *testing.T, driver, dsn string) *Repo {
	t.Helper()
	db, err := sql.Open(driver, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, driver))
}

func TestStatements_MySQL(t *testing.T) {
	r := repoFor(t, DriverMySQL, "root:root@tcp(127.0.0.1:1)/flex")

	q, args, err := r.insertSQL([]int64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	want := "INSERT INTO approved_reviews (review_id) VALUES (?),(?) ON DUPLICATE KEY UPDATE review_id = review_id"
	if q != want || len(args) != 2 {
		t.Fatalf("insert:\n got %q\nwant %q (args %v)", q, want, args)
	}

	q, args, err = r.deleteSQL([]int64{4, 5})
	if err != nil {
		t.Fatal(err)
	}
	if q != "DELETE FROM approved_reviews WHERE review_id IN (?,?)" || len(args) != 2 {
		t.Fatalf("delete: %q %v", q, args)
	}
}

func TestStatements_Postgres(t *testing.T) {
	r := repoFor(t, DriverPostgres, "postgres://u:p@127.0.0.1:1/flex?sslmode=disable")

	q, _, err := r.insertSQL([]int64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if q != "INSERT INTO approved_reviews (review_id) VALUES ($1),($2) ON CONFLICT (review_id) DO NOTHING" {
		t.Fatalf("insert: %q", q)
	}

	q, args, err := r.deleteSQL([]int64{4, 5})
	if err != nil {
		t.Fatal(err)
	}
	if q != "DELETE FROM approved_reviews WHERE review_id = ANY($1)" || len(args) != 1 {
		t.Fatalf("delete: %q %v", q, args)
	}
	if arr, ok := args[0].(pq.Int64Array); !ok || len(arr) != 2 {
		t.Fatalf("delete arg: %#v", args[0])
	}

	q, _, _ = r.selectIDs()
	if q != "SELECT review_id FROM approved_reviews ORDER BY review_id" {
		t.Fatalf("select: %q", q)
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "sqlite", "x"); err == nil {
		t.Fatal("expected error")
	}
}
