// Package postgres is the DATABASE_TYPE=postgresql backend for the
// relational store: pgx/v5 pool, $N placeholders, pgconn.PgError.Code-based
// duplicate detection.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS conversations (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);
CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE TABLE IF NOT EXISTS user_documents (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_conversation ON user_documents(conversation_id);
`

// Store is the Postgres-backed Repository implementation, relying on
// ON DELETE CASCADE rather than the sqlite backend's explicit child deletes.
type Store struct {
	pool *pgxpool.Pool
}

// Open applies the schema and returns a ready Store.
func Open(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "apply relational schema", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) CreateUser(ctx context.Context, u convo.User) (convo.User, error) {
	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, created_at, updated_at
	`, u.Username, u.Email, u.HashedPassword, now)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if convo.IsPostgresDuplicate(err) {
			return convo.User{}, apperrors.Wrap(apperrors.CodeUsernameTaken, "username or email already taken", err)
		}
		return convo.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (convo.User, bool, error) {
	return s.scanOneUser(ctx, "SELECT id, username, email, hashed_password, created_at, updated_at FROM users WHERE id = $1", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (convo.User, bool, error) {
	return s.scanOneUser(ctx, "SELECT id, username, email, hashed_password, created_at, updated_at FROM users WHERE username = $1", username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (convo.User, bool, error) {
	return s.scanOneUser(ctx, "SELECT id, username, email, hashed_password, created_at, updated_at FROM users WHERE email = $1", email)
}

func (s *Store) scanOneUser(ctx context.Context, query string, arg any) (convo.User, bool, error) {
	var u convo.User
	row := s.pool.QueryRow(ctx, query, arg)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return convo.User{}, false, nil
	}
	if err != nil {
		return convo.User{}, false, err
	}
	return u, true, nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID int64, hashedPassword string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET hashed_password = $1, updated_at = $2 WHERE id = $3
	`, hashedPassword, time.Now().UTC(), userID)
	return err
}

func (s *Store) CreateConversation(ctx context.Context, c convo.Conversation) (convo.Conversation, error) {
	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id, created_at, updated_at
	`, c.UserID, c.Title, now)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return convo.Conversation{}, err
	}
	return c, nil
}

func (s *Store) GetConversationByID(ctx context.Context, id int64) (convo.Conversation, bool, error) {
	var c convo.Conversation
	row := s.pool.QueryRow(ctx, "SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = $1", id)
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return convo.Conversation{}, false, nil
	}
	if err != nil {
		return convo.Conversation{}, false, err
	}
	return c, true, nil
}

func (s *Store) ListUserConversations(ctx context.Context, userID int64) ([]convo.Conversation, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []convo.Conversation
	for rows.Next() {
		var c convo.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) RenameConversation(ctx context.Context, id int64, title string) error {
	_, err := s.pool.Exec(ctx, "UPDATE conversations SET title = $1, updated_at = $2 WHERE id = $3", title, time.Now().UTC(), id)
	return err
}

func (s *Store) TouchConversation(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, "UPDATE conversations SET updated_at = $1 WHERE id = $2", time.Now().UTC(), id)
	return err
}

// DeleteConversation relies on ON DELETE CASCADE to remove messages and
// user_documents.
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM conversations WHERE id = $1", id)
	return err
}

func (s *Store) AppendMessage(ctx context.Context, m convo.Message) (convo.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return convo.Message{}, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	row := tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, role, content, created_at) VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.ConversationID, string(m.Role), m.Content, now)
	if err := row.Scan(&m.ID); err != nil {
		return convo.Message{}, err
	}
	if _, err := tx.Exec(ctx, "UPDATE conversations SET updated_at = $1 WHERE id = $2", now, m.ConversationID); err != nil {
		return convo.Message{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return convo.Message{}, err
	}
	m.CreatedAt = now
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]convo.Message, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC", conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []convo.Message
	for rows.Next() {
		var m convo.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = convo.MessageRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT count(*) FROM messages WHERE conversation_id = $1", conversationID).Scan(&n)
	return n, err
}

func (s *Store) CreateUserDocument(ctx context.Context, d convo.UserDocument) (convo.UserDocument, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO user_documents (user_id, conversation_id, filename, file_path, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, d.UserID, d.ConversationID, d.Filename, d.FilePath, time.Now().UTC())
	if err := row.Scan(&d.ID); err != nil {
		return convo.UserDocument{}, err
	}
	return d, nil
}

func (s *Store) CountUserDocuments(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT count(*) FROM user_documents WHERE conversation_id = $1", conversationID).Scan(&n)
	return n, err
}

var _ convo.Repository = (*Store)(nil)
