package users

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(db, DriverPostgres)
	store.newID = func() string { return "id-1" }
	store.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return store, mock
}

func TestCreate_PostgresUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	q := `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*username,\s*name,\s*email,\s*password_hash,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)$`
	mock.ExpectExec(q).
		WithArgs("id-1", "alice", "alice", "alice@x.com", "h", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	conn, err := store.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer conn.Release()

	err = conn.Create(context.Background(), &User{Username: "alice", Name: "alice", Email: "alice@x.com", PasswordHash: "h"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBErrorIsWrapped(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	conn, err := store.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer conn.Release()

	err = conn.Create(context.Background(), &User{Username: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestExistsByUsernameOrEmail_DBError(t *testing.T) {
	store, mock := newMockStore(t)

	q := `(?s)^SELECT\s+id\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s+OR\s+email\s*=\s*\$2\s+LIMIT\s+1$`
	mock.ExpectQuery(q).WithArgs("alice", "alice@x.com").WillReturnError(errors.New("connection reset"))

	conn, err := store.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer conn.Release()

	_, err = conn.ExistsByUsernameOrEmail(context.Background(), "alice", "alice@x.com")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestList_NeverSelectsPasswordHash(t *testing.T) {
	store, mock := newMockStore(t)

	q := `(?s)^SELECT\s+id,\s*username,\s*name,\s*email,\s*created_at\s+FROM\s+users\s+ORDER\s+BY\s+created_at,\s*id$`
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "username", "name", "email", "created_at"}).
		AddRow("u-1", "alice", "Alice", "alice@x.com", created).
		AddRow("u-2", "bob", "Bob", "bob@x.com", created)
	mock.ExpectQuery(q).WillReturnRows(rows)

	conn, err := store.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer conn.Release()

	list, err := conn.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "u-1" || list[1].Username != "bob" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestList_RowErrorFailsWholeListing(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "username", "name", "email", "created_at"}).
		AddRow("u-1", "alice", "Alice", "alice@x.com", time.Now()).
		RowError(0, errors.New("broken row"))
	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	conn, err := store.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer conn.Release()

	list, err := conn.List(context.Background())
	if err == nil {
		t.Fatalf("expected error, got list %+v", list)
	}
	if list != nil {
		t.Fatalf("expected no partial list, got %+v", list)
	}
}

func TestAcquire_ClosedPool(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectClose()
	if err := store.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := store.Acquire(context.Background()); err == nil {
		t.Fatal("expected error from closed pool")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
