package models

import "time"

// Notification event types
const (
	NotificationTypeLike    = "like"
	NotificationTypeComment = "comment"
	NotificationTypeFollow  = "follow"
	NotificationTypeMention = "mention"
)

// Notification is one row per notification-worthy action (PostgreSQL).
// Rows are append-only; the only mutation ever applied is setting ReadAt,
// and ReadAt is never cleared once set.
type Notification struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	RecipientID     uint       `json:"recipient_id" gorm:"index:idx_notifications_recipient_created"`
	ActorID         uint       `json:"actor_id" gorm:"index"`
	Type            string     `json:"type" gorm:"size:30;index"` // like, comment, follow, mention
	TargetPostID    string     `json:"target_post_id,omitempty"`  // empty for follow
	TargetCommentID string     `json:"target_comment_id,omitempty"`
	ReadAt          *time.Time `json:"read_at,omitempty" gorm:"index"`
	CreatedAt       time.Time  `json:"created_at" gorm:"index:idx_notifications_recipient_created"`
}

// ActorSummary is an actor's display identity resolved at read time.
// Username and AvatarURL stay null when the account no longer exists.
type ActorSummary struct {
	ID        uint    `json:"id"`
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// NotificationGroup is a display group computed on every feed read by
// folding notification rows that share a group key. It has no persisted
// identity; the same group can absorb new member events between reads.
type NotificationGroup struct {
	EventIDs        []string       `json:"event_ids"`
	Type            string         `json:"type"`
	TargetPostID    string         `json:"target_post_id,omitempty"`
	TargetCommentID string         `json:"target_comment_id,omitempty"`
	Actors          []ActorSummary `json:"actors"`
	TotalActorCount int            `json:"total_actor_count"`
	IsUnread        bool           `json:"is_unread"`
	MostRecentAt    time.Time      `json:"most_recent_at"`
}

// NotificationFeed is one page of the aggregated feed.
type NotificationFeed struct {
	Items   []NotificationGroup `json:"items"`
	HasMore bool                `json:"has_more"`
}

// MarkReadRequest defines the request body for marking notifications read.
// An omitted or empty id list means "mark everything read".
type MarkReadRequest struct {
	IDs []string `json:"ids,omitempty"`
}
