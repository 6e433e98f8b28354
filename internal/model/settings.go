package model

// Well-known keys persisted through the key/value sync primitive.
const (
	KeyProfileSettings = "profile-settings"
	KeyAuthFlag        = "auth-flag"
	KeyUnreadCount     = "notification-unread-count"
)

// ProfileSettings are per-user preferences shared between every running
// Work Hub process of the same user.
type ProfileSettings struct {
	DisplayName string `json:"displayName"`
	UserID      string `json:"userId"`
	Language    string `json:"language"`

	// DefaultTab is the notification tab opened on start.
	DefaultTab string `json:"defaultTab"`
}
