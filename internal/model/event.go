package model

import "strings"

// EventType is the fine-grained kind of a notification. It drives badge
// styling and the default navigation target.
type EventType string

const (
	EventTypeReviewRequested  EventType = "REVIEW_REQUESTED"
	EventTypeReviewApproved   EventType = "REVIEW_APPROVED"
	EventTypeReviewRejected   EventType = "REVIEW_REJECTED"
	EventTypeReviewCanceled   EventType = "REVIEW_CANCELED"
	EventTypeStatusChanged    EventType = "STATUS_CHANGED"
	EventTypeProjectCreated   EventType = "PROJECT_CREATED"
	EventTypeProjectUpdated   EventType = "PROJECT_UPDATED"
	EventTypeProjectDeleted   EventType = "PROJECT_DELETED"
	EventTypeNodeCreated      EventType = "NODE_CREATED"
	EventTypeNodeUpdated      EventType = "NODE_UPDATED"
	EventTypeNodeDeleted      EventType = "NODE_DELETED"
	EventTypePostCreated      EventType = "POST_CREATED"
	EventTypePostUpdated      EventType = "POST_UPDATED"
	EventTypeCommentCreated   EventType = "COMMENT_CREATED"
	EventTypeCommentReplied   EventType = "COMMENT_REPLIED"
	EventTypeCSTicketCreated  EventType = "CS_TICKET_CREATED"
	EventTypeCSTicketAnswered EventType = "CS_TICKET_ANSWERED"
	EventTypeCSTicketClosed   EventType = "CS_TICKET_CLOSED"
	EventTypeGeneral          EventType = "GENERAL"
)

// EventTypes lists every recognized event type in display order.
var EventTypes = []EventType{
	EventTypeReviewRequested,
	EventTypeReviewApproved,
	EventTypeReviewRejected,
	EventTypeReviewCanceled,
	EventTypeStatusChanged,
	EventTypeProjectCreated,
	EventTypeProjectUpdated,
	EventTypeProjectDeleted,
	EventTypeNodeCreated,
	EventTypeNodeUpdated,
	EventTypeNodeDeleted,
	EventTypePostCreated,
	EventTypePostUpdated,
	EventTypeCommentCreated,
	EventTypeCommentReplied,
	EventTypeCSTicketCreated,
	EventTypeCSTicketAnswered,
	EventTypeCSTicketClosed,
	EventTypeGeneral,
}

var eventLabels = map[EventType]string{
	EventTypeReviewRequested:  "Review requested",
	EventTypeReviewApproved:   "Review approved",
	EventTypeReviewRejected:   "Review rejected",
	EventTypeReviewCanceled:   "Review canceled",
	EventTypeStatusChanged:    "Status changed",
	EventTypeProjectCreated:   "Project created",
	EventTypeProjectUpdated:   "Project updated",
	EventTypeProjectDeleted:   "Project deleted",
	EventTypeNodeCreated:      "Node created",
	EventTypeNodeUpdated:      "Node updated",
	EventTypeNodeDeleted:      "Node deleted",
	EventTypePostCreated:      "New post",
	EventTypePostUpdated:      "Post updated",
	EventTypeCommentCreated:   "New comment",
	EventTypeCommentReplied:   "Reply",
	EventTypeCSTicketCreated:  "CS ticket opened",
	EventTypeCSTicketAnswered: "CS ticket answered",
	EventTypeCSTicketClosed:   "CS ticket closed",
	EventTypeGeneral:          "Notice",
}

// ParseEventType maps a raw wire value onto a known EventType.
// Matching is case-insensitive and tolerates '-' or ' ' separators;
// anything unrecognized becomes EventTypeGeneral.
func ParseEventType(raw string) EventType {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	et := EventType(norm)
	if _, ok := eventLabels[et]; ok {
		return et
	}
	return EventTypeGeneral
}

// Label returns the short human-readable badge text.
func (e EventType) Label() string {
	if l, ok := eventLabels[e]; ok {
		return l
	}
	return eventLabels[EventTypeGeneral]
}

// Category returns the coarse tab bucket for the event type.
func (e EventType) Category() Category {
	s := string(e)
	switch {
	case strings.HasPrefix(s, "REVIEW_"), e == EventTypeStatusChanged,
		strings.HasPrefix(s, "NODE_"):
		return CategoryTask
	case strings.HasPrefix(s, "PROJECT_"):
		return CategoryProject
	case strings.HasPrefix(s, "POST_"), strings.HasPrefix(s, "COMMENT_"),
		strings.HasPrefix(s, "CS_"):
		return CategoryTeam
	default:
		return CategorySystem
	}
}

// Category is the coarse grouping shown as notification tabs.
type Category string

const (
	CategoryTask    Category = "task"
	CategoryProject Category = "project"
	CategoryTeam    Category = "team"
	CategorySystem  Category = "system"
)

// ParseCategory returns the matching Category and whether raw named one.
func ParseCategory(raw string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case CategoryTask, CategoryProject, CategoryTeam, CategorySystem:
		return c, true
	}
	return "", false
}
