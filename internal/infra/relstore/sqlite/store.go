// Package sqlite implements the relational store over the shared
// connection pool: users, conversations, messages, and user-documents, with
// cascade deletes expressed as explicit child-table cleanup (SQLite foreign
// keys enforce referential integrity but do not auto-cascade unless the
// table was declared with ON DELETE CASCADE, so the deletes are listed here
// in dependency order).
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/infra/sqlpool"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	title TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE TABLE IF NOT EXISTS user_documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	uploaded_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_conversation ON user_documents(conversation_id);
`

// Store is the sqlite-backed Repository implementation.
type Store struct {
	pool *sqlpool.Pool
}

// Open applies the schema over pool and returns a ready Store.
func Open(ctx context.Context, pool *sqlpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	}); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "apply relational schema", err)
	}
	return s, nil
}

func (s *Store) CreateUser(ctx context.Context, u convo.User) (convo.User, error) {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users (username, email, hashed_password, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, u.Username, u.Email, u.HashedPassword, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return mapDuplicate(err, u.Username, u.Email)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		u.ID = id
		return nil
	})
	if err != nil {
		return convo.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (convo.User, bool, error) {
	return s.scanOneUser(ctx, "SELECT id, username, email, hashed_password, created_at, updated_at FROM users WHERE id = ?", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (convo.User, bool, error) {
	return s.scanOneUser(ctx, "SELECT id, username, email, hashed_password, created_at, updated_at FROM users WHERE username = ?", username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (convo.User, bool, error) {
	return s.scanOneUser(ctx, "SELECT id, username, email, hashed_password, created_at, updated_at FROM users WHERE email = ?", email)
}

func (s *Store) scanOneUser(ctx context.Context, query string, arg any) (convo.User, bool, error) {
	var u convo.User
	found := false
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, query, arg)
		scanErr := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.CreatedAt, &u.UpdatedAt)
		if scanErr == sql.ErrNoRows {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		found = true
		return nil
	})
	return u, found, err
}

func (s *Store) UpdatePassword(ctx context.Context, userID int64, hashedPassword string) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE users SET hashed_password = ?, updated_at = ? WHERE id = ?
		`, hashedPassword, time.Now().UTC(), userID)
		return err
	})
}

func (s *Store) CreateConversation(ctx context.Context, c convo.Conversation) (convo.Conversation, error) {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
		`, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		c.ID = id
		return nil
	})
	if err != nil {
		return convo.Conversation{}, err
	}
	return c, nil
}

func (s *Store) GetConversationByID(ctx context.Context, id int64) (convo.Conversation, bool, error) {
	var c convo.Conversation
	found := false
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ?", id)
		scanErr := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
		if scanErr == sql.ErrNoRows {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		found = true
		return nil
	})
	return c, found, err
}

func (s *Store) ListUserConversations(ctx context.Context, userID int64) ([]convo.Conversation, error) {
	var out []convo.Conversation
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC", userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c convo.Conversation
			if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) RenameConversation(ctx context.Context, id int64, title string) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?", title, time.Now().UTC(), id)
		return err
	})
}

func (s *Store) TouchConversation(ctx context.Context, id int64) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", time.Now().UTC(), id)
		return err
	})
}

// DeleteConversation cascades to messages and user_documents, per the
// cascade-delete rule for Conversation's children.
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM user_documents WHERE conversation_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
		return err
	})
}

// AppendMessage inserts the message and bumps the parent conversation's
// updated_at in the same transaction (history is append-only, only the
// parent's timestamp changes).
func (s *Store) AppendMessage(ctx context.Context, m convo.Message) (convo.Message, error) {
	m.CreatedAt = time.Now().UTC()
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)
		`, m.ConversationID, string(m.Role), m.Content, m.CreatedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		m.ID = id
		_, err = tx.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", m.CreatedAt, m.ConversationID)
		return err
	})
	if err != nil {
		return convo.Message{}, err
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]convo.Message, error) {
	var out []convo.Message
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC", conversationID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m convo.Message
			var role string
			if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
				return err
			}
			m.Role = convo.MessageRole(role)
			out = append(out, m)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, "SELECT count(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&n)
	})
	return n, err
}

func (s *Store) CreateUserDocument(ctx context.Context, d convo.UserDocument) (convo.UserDocument, error) {
	d.UploadedAt = time.Now().UTC()
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO user_documents (user_id, conversation_id, filename, file_path, uploaded_at)
			VALUES (?, ?, ?, ?, ?)
		`, d.UserID, d.ConversationID, d.Filename, d.FilePath, d.UploadedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		d.ID = id
		return nil
	})
	if err != nil {
		return convo.UserDocument{}, err
	}
	return d, nil
}

func (s *Store) CountUserDocuments(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, "SELECT count(*) FROM user_documents WHERE conversation_id = ?", conversationID).Scan(&n)
	})
	return n, err
}

// mapDuplicate classifies SQLite's unique-constraint error text into a
// domain-specific error, mirroring the pgconn.PgError.Code == \"23505\"
// check but against modernc.org/sqlite's string-based error surface.
func mapDuplicate(err error, username, email string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return apperrors.Wrap(apperrors.CodeUsernameTaken, "username already taken: "+username, err)
	case strings.Contains(msg, "users.email"):
		return apperrors.Wrap(apperrors.CodeEmailTaken, "email already registered: "+email, err)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return apperrors.Wrap(apperrors.CodeValidation, "duplicate value", err)
	default:
		return err
	}
}

var _ convo.Repository = (*Store)(nil)
