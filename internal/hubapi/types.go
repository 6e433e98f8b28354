package hubapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	pathNotifications = "/api/notifications"
	pathUnreadCount   = "/api/notifications/unread-count"
	pathSubscribe     = "/api/notifications/subscribe"
)

// FlexString decodes a JSON string, number or boolean into a string.
// Backend ids arrive as either strings or numbers depending on the
// endpoint.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(strings.TrimSpace(string(data)))
	return nil
}

func (f FlexString) String() string { return string(f) }

// NotificationDTO is the wire shape of a notification. It is a tolerant
// union of the current and legacy field names; only the Normalizer reads
// it.
type NotificationDTO struct {
	ID             FlexString `json:"id"`
	NotificationID FlexString `json:"notificationId"`

	EventType string `json:"eventType"`
	Type      string `json:"type"`
	Category  string `json:"category"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Message     string `json:"message"`
	Content     string `json:"content"`

	Read   *bool       `json:"read"`
	IsRead *bool       `json:"isRead"`
	ReadAt *FlexString `json:"readAt"`

	CreatedAt   FlexString `json:"createdAt"`
	CreatedDate FlexString `json:"createdDate"`

	UserID          FlexString `json:"userId"`
	ReceiverID      FlexString `json:"receiverId"`
	SenderUserID    FlexString `json:"senderUserId"`
	SenderID        FlexString `json:"senderId"`
	ActorName       string     `json:"actorName"`
	SenderName      string     `json:"senderName"`
	AvatarURL       string     `json:"avatarUrl"`
	SenderAvatarURL string     `json:"senderAvatarUrl"`
	ActorType       string     `json:"actorType"`

	Link        string `json:"link"`
	URL         string `json:"url"`
	ExternalURL string `json:"externalUrl"`

	ProjectID     FlexString `json:"projectId"`
	NodeID        FlexString `json:"nodeId"`
	ProjectNodeID FlexString `json:"projectNodeId"`
	PostID        FlexString `json:"postId"`
	CommentID     FlexString `json:"commentId"`
	CSPostID      FlexString `json:"csPostId"`
	CSQnaID       FlexString `json:"csQnaId"`
	TicketID      FlexString `json:"ticketId"`
}

// Envelope is the {success, message, data} wrapper some endpoints use.
type Envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// unwrap returns the payload inside an envelope, or raw itself when it is
// not an envelope. A success:false envelope yields an EnvelopeError.
func unwrap(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return raw, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	_, hasSuccess := probe["success"]
	_, hasData := probe["data"]
	if !hasSuccess && !hasData {
		return raw, nil
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Success != nil && !*env.Success {
		return nil, &EnvelopeError{Message: env.Message}
	}
	return bytes.TrimSpace(env.Data), nil
}

// decodeList decodes a list payload: a bare array, or a page object
// holding the array under content, items or notifications.
func decodeList(raw json.RawMessage) ([]NotificationDTO, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return []NotificationDTO{}, nil
	}
	if raw[0] == '[' {
		var items []NotificationDTO
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var page struct {
		Content       []NotificationDTO `json:"content"`
		Items         []NotificationDTO `json:"items"`
		Notifications []NotificationDTO `json:"notifications"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}
	switch {
	case page.Content != nil:
		return page.Content, nil
	case page.Items != nil:
		return page.Items, nil
	case page.Notifications != nil:
		return page.Notifications, nil
	}
	return []NotificationDTO{}, nil
}

// decodeCount decodes a number, a numeric string, or an object carrying
// count or unreadCount.
func decodeCount(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return 0, ErrMalformedCount
	}

	switch raw[0] {
	case '{':
		var obj struct {
			Count       *json.RawMessage `json:"count"`
			UnreadCount *json.RawMessage `json:"unreadCount"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, ErrMalformedCount
		}
		if obj.UnreadCount != nil {
			return decodeCount(*obj.UnreadCount)
		}
		if obj.Count != nil {
			return decodeCount(*obj.Count)
		}
		return 0, ErrMalformedCount
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrMalformedCount
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, ErrMalformedCount
		}
		return n, nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, ErrMalformedCount
	}
	return int(f), nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
