package sqlrepo

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/mysql/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Open connects with the named driver. MySQL DSNs are normalized to parse
// timestamps as UTC.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want mysql or postgres)", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, transport("connect "+driver, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate applies the bundled schema for the repo's dialect. Statements are
// idempotent, so running it on every start is safe.
func (r *Repo) Migrate(ctx context.Context) error {
	dir := "migrations/" + r.db.DriverName()
	ents, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return fmt.Errorf("no migrations for %s: %w", r.db.DriverName(), err)
	}
	var files []string
	for _, e := range ents {
		if strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, dir+"/"+e.Name())
		}
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := migrations.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("apply %s: %w", f, err)
		}
	}
	return nil
}
