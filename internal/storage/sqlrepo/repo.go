// Package sqlrepo is the durable home of the approved-review set, on MySQL or
// Postgres. The dialect follows the sqlx driver name.
package sqlrepo

import (
	"context"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"flex_reviews/internal/domain"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	approvedTable = "approved_reviews"
)

type Repo struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func New(db *sqlx.DB) *Repo {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if db.DriverName() == DriverPostgres {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &Repo{db: db, sb: sb}
}

func (r *Repo) DB() *sqlx.DB { return r.db }

func (r *Repo) postgres() bool { return r.db.DriverName() == DriverPostgres }

func transport(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrTransport, op, err)
}

func (r *Repo) selectIDs() (string, []any, error) {
	return r.sb.Select("review_id").From(approvedTable).OrderBy("review_id").ToSql()
}

// LoadApproved returns the stored set in ascending order.
func (r *Repo) LoadApproved(ctx context.Context) ([]int64, error) {
	q, args, err := r.selectIDs()
	if err != nil {
		return nil, err
	}
	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, transport("load approved", err)
	}
	return ids, nil
}

// SaveApproved makes the stored set equal to ids, touching only the rows
// that differ, in one transaction.
func (r *Repo) SaveApproved(ctx context.Context, ids []int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return transport("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	q, args, err := r.selectIDs()
	if err != nil {
		return err
	}
	var current []int64
	if err := tx.SelectContext(ctx, &current, q, args...); err != nil {
		return transport("read approved", err)
	}

	add, remove := diffIDs(current, ids)
	if len(remove) > 0 {
		q, args, err := r.deleteSQL(remove)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return transport("delete approved", err)
		}
	}
	if len(add) > 0 {
		q, args, err := r.insertSQL(add)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return transport("insert approved", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return transport("commit", err)
	}
	return nil
}

func (r *Repo) deleteSQL(ids []int64) (string, []any, error) {
	del := r.sb.Delete(approvedTable)
	if r.postgres() {
		return del.Where("review_id = ANY(?)", pq.Int64Array(ids)).ToSql()
	}
	return del.Where(sq.Eq{"review_id": ids}).ToSql()
}

func (r *Repo) insertSQL(ids []int64) (string, []any, error) {
	ins := r.sb.Insert(approvedTable).Columns("review_id")
	for _, id := range ids {
		ins = ins.Values(id)
	}
	if r.postgres() {
		return ins.Suffix("ON CONFLICT (review_id) DO NOTHING").ToSql()
	}
	return ins.Suffix("ON DUPLICATE KEY UPDATE review_id = review_id").ToSql()
}

// diffIDs returns what to insert and delete to turn current into want.
// Both results are sorted and free of duplicates.
func diffIDs(current, want []int64) (add, remove []int64) {
	have := make(map[int64]bool, len(current))
	for _, id := range current {
		have[id] = true
	}
	wanted := make(map[int64]bool, len(want))
	for _, id := range want {
		if wanted[id] {
			continue
		}
		wanted[id] = true
		if !have[id] {
			add = append(add, id)
		}
	}
	for id := range have {
		if !wanted[id] {
			remove = append(remove, id)
		}
	}
	sort.Slice(add, func(i, j int) bool { return add[i] < add[j] })
	sort.Slice(remove, func(i, j int) bool { return remove[i] < remove[j] })
	return add, remove
}
