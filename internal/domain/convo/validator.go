package convo

import (
	"context"
	"fmt"
	"time"
)

// DefaultExpiryDays is how long a conversation may sit idle before
// operations requiring an active session start failing.
const DefaultExpiryDays = 30

// expiringFraction marks a conversation "expiring" once its age passes this
// fraction of the expiry window.
const expiringFraction = 0.8

// HealthStatus classifies a conversation's lifecycle state.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthExpiring HealthStatus = "expiring"
	HealthExpired  HealthStatus = "expired"
	HealthInvalid  HealthStatus = "invalid"
)

// HealthReport is the result of Health.
type HealthReport struct {
	Exists        bool
	OwnedByUser   bool
	IsExpired     bool
	MessageCount  int
	DocumentCount int
	LastActivity  time.Time
	AgeDays       float64
	HealthStatus  HealthStatus
}

// CleanupSummary is the result of CleanupExpired.
type CleanupSummary struct {
	Total         int
	ExpiredCount  int
	DeletedCount  int
	DeletedIDs    []int64
}

// Validator implements the conversation-lifecycle checks every
// ingest/search/chat call must pass through: ownership, activity expiry, and
// orphan cleanup.
type Validator struct {
	repo       Repository
	expiryDays int
	now        func() time.Time
}

// NewValidator builds a Validator with the given expiry window in days (0
// selects DefaultExpiryDays).
func NewValidator(repo Repository, expiryDays int) *Validator {
	if expiryDays <= 0 {
		expiryDays = DefaultExpiryDays
	}
	return &Validator{repo: repo, expiryDays: expiryDays, now: time.Now}
}

// ValidateAccess checks not-found, ownership, and (when
// requireActive) expiry checks, in that order.
func (v *Validator) ValidateAccess(ctx context.Context, conversationID, userID int64, requireActive bool) (bool, string) {
	conv, found, err := v.repo.GetConversationByID(ctx, conversationID)
	if err != nil || !found {
		return false, "not found or access denied"
	}
	if conv.UserID != userID {
		return false, "access denied"
	}
	if !requireActive {
		return true, ""
	}
	ts := lastActivity(conv)
	ageDays := v.now().Sub(ts).Hours() / 24
	if ageDays > float64(v.expiryDays) {
		return false, fmt.Sprintf("expired: last activity %.0f days ago", ageDays)
	}
	return true, ""
}

// Health reports a diagnostic view of a conversation.
func (v *Validator) Health(ctx context.Context, conversationID, userID int64) (HealthReport, error) {
	conv, found, err := v.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return HealthReport{}, err
	}
	if !found {
		return HealthReport{Exists: false, HealthStatus: HealthInvalid}, nil
	}
	owned := conv.UserID == userID
	if !owned {
		return HealthReport{Exists: true, OwnedByUser: false, HealthStatus: HealthInvalid}, nil
	}

	msgCount, err := v.repo.CountMessages(ctx, conversationID)
	if err != nil {
		return HealthReport{}, err
	}
	docCount, err := v.repo.CountUserDocuments(ctx, conversationID)
	if err != nil {
		return HealthReport{}, err
	}

	ts := lastActivity(conv)
	ageDays := v.now().Sub(ts).Hours() / 24
	expired := ageDays > float64(v.expiryDays)

	status := HealthHealthy
	switch {
	case expired:
		status = HealthExpired
	case ageDays > expiringFraction*float64(v.expiryDays):
		status = HealthExpiring
	}

	return HealthReport{
		Exists:        true,
		OwnedByUser:   true,
		IsExpired:     expired,
		MessageCount:  msgCount,
		DocumentCount: docCount,
		LastActivity:  ts,
		AgeDays:       ageDays,
		HealthStatus:  status,
	}, nil
}

// CleanupExpired deletes every expired conversation owned
// by userID, relying on the relational store to cascade to messages and
// documents.
func (v *Validator) CleanupExpired(ctx context.Context, userID int64) (CleanupSummary, error) {
	convs, err := v.repo.ListUserConversations(ctx, userID)
	if err != nil {
		return CleanupSummary{}, err
	}

	summary := CleanupSummary{Total: len(convs)}
	now := v.now()
	for _, c := range convs {
		ageDays := now.Sub(lastActivity(c)).Hours() / 24
		if ageDays <= float64(v.expiryDays) {
			continue
		}
		summary.ExpiredCount++
		if err := v.repo.DeleteConversation(ctx, c.ID); err != nil {
			continue
		}
		summary.DeletedCount++
		summary.DeletedIDs = append(summary.DeletedIDs, c.ID)
	}
	return summary, nil
}

// lastActivity prefers UpdatedAt, falling back to CreatedAt.
func lastActivity(c Conversation) time.Time {
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.CreatedAt
}
