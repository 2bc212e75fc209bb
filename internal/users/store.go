package users

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// 対応しているドライバー名です。
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

const pingTimeout = 8 * time.Second

var connMaxLifetime = 30 * time.Minute

//go:embed schema/*.sql
var schemaFS embed.FS

// Store はコネクションプールを保持し、リクエスト単位で接続を貸し出します。
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
	newID  func() string
}

// Open はデータベースへ接続し、疎通確認を行います。
func Open(ctx context.Context, driver, dsn string, maxOpenConns int) (*Store, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	configurePool(db, driver, dsn, maxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewStore(db, driver), nil
}

// NewStore は既存の *sql.DB から Store を作成します。
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{
		db:     db,
		driver: driver,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

// EnsureSchema は users テーブルが無ければ作成します。
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl, err := schemaFS.ReadFile("schema/" + s.driver + ".sql")
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Acquire はプールから接続を1本取り出します。呼び出し側は必ず Release してください。
func (s *Store) Acquire(ctx context.Context) (*Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &Conn{conn: conn, now: s.now, newID: s.newID}, nil
}

// Close はプールを閉じます。
func (s *Store) Close() error {
	return s.db.Close()
}

// configurePool はプールの上限と接続の寿命を設定します。
// インメモリSQLiteは接続ごとに別DBになるため1本に固定し、作り直さない。
func configurePool(db *sql.DB, driver, dsn string, maxOpenConns int) {
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	lifetime := connMaxLifetime
	if driver == DriverSQLite && isMemoryDSN(dsn) {
		maxOpenConns = 1
		lifetime = 0
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(lifetime)
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || dsn == "file::memory:"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
