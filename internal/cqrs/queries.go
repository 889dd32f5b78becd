package cqrs

// LoginQuery authenticates by username or email plus password.
type LoginQuery struct {
	Identifier string
	Password   string
}

// GetUserQuery fetches a single user by ID.
type GetUserQuery struct {
	UserID string
}
