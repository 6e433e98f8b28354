package model

import (
	"slices"
	"strings"
	"time"
)

// ActorType identifies who triggered a notification.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// Notification is the canonical, normalized representation of an alert
// delivered by the Work Hub backend. Instances are only ever produced by
// the hubapi normalizer; wire shapes never travel past it.
type Notification struct {
	// ID is the stable identifier, unique within the canonical set.
	ID string `json:"id"`

	// EventType is the fine-grained event kind (use EventType* constants).
	EventType EventType `json:"eventType"`

	// Category is the coarse bucket used by the notification tabs.
	Category Category `json:"category"`

	// Title and Description are display strings and are never empty.
	Title       string `json:"title"`
	Description string `json:"description"`

	// Read only ever moves from false to true on the client.
	Read bool `json:"read"`

	// CreatedAt is when the backend generated the notification.
	CreatedAt time.Time `json:"createdAt"`

	// TimeAgo is a presentational cache recomputed on a fixed tick.
	TimeAgo string `json:"timeAgo"`

	// Attribution metadata.
	UserID       string    `json:"userId,omitempty"`
	SenderUserID string    `json:"senderUserId,omitempty"`
	ActorName    string    `json:"actorName,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	ActorType    ActorType `json:"actorType,omitempty"`

	// Link is a UI route (already rewritten from API shape).
	Link        string `json:"link,omitempty"`
	ExternalURL string `json:"externalUrl,omitempty"`

	// Related entity ids used to construct a navigation target.
	ProjectID string `json:"projectId,omitempty"`
	NodeID    string `json:"nodeId,omitempty"`
	PostID    string `json:"postId,omitempty"`
	CommentID string `json:"commentId,omitempty"`
	CSPostID  string `json:"csPostId,omitempty"`
	CSQnaID   string `json:"csQnaId,omitempty"`
	TicketID  string `json:"ticketId,omitempty"`
}

// CountUnread returns the number of notifications with Read == false.
func CountUnread(ns []Notification) int {
	n := 0
	for _, item := range ns {
		if !item.Read {
			n++
		}
	}
	return n
}

// SortNewestFirst orders ns in place by CreatedAt descending. Equal
// timestamps are ordered by ID descending so the order is deterministic.
func SortNewestFirst(ns []Notification) {
	slices.SortStableFunc(ns, func(a, b Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}
