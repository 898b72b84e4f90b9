package devapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrUsernameTaken is returned when the username already exists.
var ErrUsernameTaken = errors.New("devapi: username taken")

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// User is a stored account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
}

// UserStore persists users in SQLite.
type UserStore struct {
	db       *sql.DB
	hashCost int
}

// OpenUserStore opens dsn with the modernc SQLite driver and creates the
// users table.
func OpenUserStore(ctx context.Context, dsn string, hashCost int) (*UserStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// One connection keeps in-memory databases alive and serialises writes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate users: %w", err)
	}
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &UserStore{db: db, hashCost: hashCost}, nil
}

// Close closes the database.
func (s *UserStore) Close() error {
	return s.db.Close()
}

// Create hashes password and inserts a new user. Passwords longer than
// MaxPasswordBytes fail with bcrypt.ErrPasswordTooLong.
func (s *UserStore) Create(ctx context.Context, username, password string) (User, error) {
	if len(password) > MaxPasswordBytes {
		return User{}, bcrypt.ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{ID: uuid.NewString(), Username: username, PasswordHash: string(hash)}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES (?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash)
	if isUniqueViolation(err) {
		return User{}, ErrUsernameTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
