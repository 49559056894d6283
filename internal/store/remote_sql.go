package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// syncDialect covers the differences between the SQL sync backends
type syncDialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// CreateTableQuery returns the SQL to create the kv table
	CreateTableQuery() string

	// UpsertQuery returns the backend's insert-or-replace statement
	UpsertQuery() string

	// SelectQuery returns the single-key lookup statement
	SelectQuery() string

	// DeleteQuery returns the single-key delete statement
	DeleteQuery() string

	// Classify maps a driver error onto the remote failure taxonomy
	Classify(err error) FailureKind
}

// placeholderRegexp matches ? placeholders
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// postgresDialect implements syncDialect for PostgreSQL
type postgresDialect struct{}

func (d *postgresDialect) DriverName() string {
	return "postgres"
}

func (d *postgresDialect) RewriteQuery(query string) string {
	// PostgreSQL uses $1, $2, etc. instead of ?
	return rewritePlaceholdersToNumbered(query)
}

func (d *postgresDialect) CreateTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`
}

func (d *postgresDialect) UpsertQuery() string {
	return `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP
	`
}

func (d *postgresDialect) SelectQuery() string {
	return "SELECT value FROM kv WHERE key = ?"
}

func (d *postgresDialect) DeleteQuery() string {
	return "DELETE FROM kv WHERE key = ?"
}

func (d *postgresDialect) Classify(err error) FailureKind {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "42501": // insufficient_privilege
			return KindPermission
		case "28000", "28P01": // invalid authorization
			return KindPermission
		case "53100", "53200": // disk_full, out_of_memory
			return KindStorageQuota
		case "53300": // too_many_connections
			return KindUnavailable
		}
		return KindOther
	}
	return KindUnavailable
}

// mysqlDialect implements syncDialect for MySQL
type mysqlDialect struct{}

func (d *mysqlDialect) DriverName() string {
	return "mysql"
}

func (d *mysqlDialect) RewriteQuery(query string) string {
	// MySQL uses ? placeholders like SQLite, no rewrite needed
	return query
}

func (d *mysqlDialect) CreateTableQuery() string {
	return "CREATE TABLE IF NOT EXISTS kv (" +
		"`key` VARCHAR(191) PRIMARY KEY, " +
		"`value` LONGBLOB NOT NULL, " +
		"updated_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6))"
}

func (d *mysqlDialect) UpsertQuery() string {
	return "INSERT INTO kv (`key`, `value`) VALUES (?, ?) " +
		"ON DUPLICATE KEY UPDATE `value` = VALUES(`value`), updated_at = CURRENT_TIMESTAMP(6)"
}

// KEY is reserved in MySQL, so the column stays backtick-quoted

func (d *mysqlDialect) SelectQuery() string {
	return "SELECT `value` FROM kv WHERE `key` = ?"
}

func (d *mysqlDialect) DeleteQuery() string {
	return "DELETE FROM kv WHERE `key` = ?"
}

func (d *mysqlDialect) Classify(err error) FailureKind {
	if myErr, ok := err.(*mysql.MySQLError); ok {
		switch myErr.Number {
		case 1044, 1045, 1142: // access denied
			return KindPermission
		case 1114: // table is full
			return KindStorageQuota
		case 1040: // too many connections
			return KindUnavailable
		}
		return KindOther
	}
	return KindUnavailable
}

// SQLTier is a remote tier backed by a networked SQL database
type SQLTier struct {
	db      *sql.DB
	dialect syncDialect
	name    string
}

// OpenSQLTier connects to a postgres or mysql sync backend
func OpenSQLTier(backend, url string) (*SQLTier, error) {
	var dialect syncDialect
	switch backend {
	case "postgres", "postgresql":
		dialect = &postgresDialect{}
	case "mysql":
		dialect = &mysqlDialect{}
	default:
		return nil, fmt.Errorf("unsupported sync backend: %s", backend)
	}

	db, err := sql.Open(dialect.DriverName(), url)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, remoteErr(dialect.Classify(err), err)
	}

	if _, err := db.Exec(dialect.CreateTableQuery()); err != nil {
		db.Close()
		return nil, remoteErr(dialect.Classify(err), err)
	}

	return &SQLTier{db: db, dialect: dialect, name: backend}, nil
}

func (t *SQLTier) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	query := t.dialect.RewriteQuery(t.dialect.SelectQuery())
	err := t.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, remoteErr(t.dialect.Classify(err), err)
	}
	return value, true, nil
}

func (t *SQLTier) Write(ctx context.Context, key string, value []byte) error {
	query := t.dialect.RewriteQuery(t.dialect.UpsertQuery())
	if _, err := t.db.ExecContext(ctx, query, key, value); err != nil {
		return remoteErr(t.dialect.Classify(err), err)
	}
	return nil
}

func (t *SQLTier) Remove(ctx context.Context, key string) error {
	query := t.dialect.RewriteQuery(t.dialect.DeleteQuery())
	if _, err := t.db.ExecContext(ctx, query, key); err != nil {
		return remoteErr(t.dialect.Classify(err), err)
	}
	return nil
}

func (t *SQLTier) Name() string {
	return t.name
}

func (t *SQLTier) Close() error {
	return t.db.Close()
}
