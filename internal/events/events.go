package events

import "time"

// Event types
const (
	UserRegistered    = "user.registered"
	UserUpdated       = "user.updated"
	UserAvatarUpdated = "user.avatar_updated"
)

// Stream name
const UserEventsStream = "user.events"

// Event is the base structure published to the stream.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type UserRegisteredEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type UserUpdatedEvent struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type UserAvatarUpdatedEvent struct {
	UserID    string `json:"userId"`
	AvatarURL string `json:"avatarUrl"`
}
