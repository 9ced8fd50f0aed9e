package convo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the relational store contract: user, conversation,
// message, and user-document CRUD over a pooled SQL connection. Unique
// constraint violations on users surface as AppErrors rather than a raw
// driver error: the sqlite store reports CodeUsernameTaken or CodeEmailTaken
// by column, while the Postgres store reports every unique violation on
// users as CodeUsernameTaken.
type Repository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByID(ctx context.Context, id int64) (User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (User, bool, error)
	GetUserByEmail(ctx context.Context, email string) (User, bool, error)
	UpdatePassword(ctx context.Context, userID int64, hashedPassword string) error

	CreateConversation(ctx context.Context, c Conversation) (Conversation, error)
	GetConversationByID(ctx context.Context, id int64) (Conversation, bool, error)
	ListUserConversations(ctx context.Context, userID int64) ([]Conversation, error)
	RenameConversation(ctx context.Context, id int64, title string) error
	TouchConversation(ctx context.Context, id int64) error
	DeleteConversation(ctx context.Context, id int64) error

	AppendMessage(ctx context.Context, m Message) (Message, error)
	ListMessages(ctx context.Context, conversationID int64) ([]Message, error)
	CountMessages(ctx context.Context, conversationID int64) (int, error)

	CreateUserDocument(ctx context.Context, d UserDocument) (UserDocument, error)
	CountUserDocuments(ctx context.Context, conversationID int64) (int, error)
}

// pgDuplicateCode is Postgres's unique_violation SQLSTATE; the sqlite store
// detects the analogous condition by matching the driver's error text in
// its own mapDuplicate.
const pgDuplicateCode = "23505"

// IsPostgresDuplicate reports whether err is a Postgres unique-constraint
// violation, grounded on a userrepo.isDuplicateError-style check.
func IsPostgresDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDuplicateCode
	}
	return false
}
