package models

// User is a durable account row. The id is an opaque identifier allocated on
// first sight of a username; the username itself is the credential.
type User struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	Roles       []string
	Metadata    map[string]any
	LastLogin   string
	CreatedAt   string
	UpdatedAt   string
}

// UserDefaults carries the attributes applied when a user row is created on
// demand by EnsureUser.
type UserDefaults struct {
	DisplayName string
	Email       string
	Roles       []string
	Metadata    map[string]any
}

// Profile projects the user row into the payload shape returned by the
// get-user-data operation.
func (u User) Profile() map[string]any {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	metadata := u.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"id":        u.Username,
		"name":      name,
		"roles":     roles,
		"email":     u.Email,
		"metadata":  metadata,
		"lastLogin": u.LastLogin,
	}
}
