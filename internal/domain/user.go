package domain

import "fmt"

// User is the profile record returned by the backend. Only "id" is expected;
// every other field is passed through untouched.
type User map[string]any

func (u User) ID() string {
	return u.stringField("id")
}

func (u User) Email() string {
	return u.stringField("email")
}

func (u User) Name() string {
	return u.stringField("name")
}

// DisplayName prefers name, then email, then id.
func (u User) DisplayName() string {
	for _, value := range []string{u.Name(), u.Email(), u.ID()} {
		if value != "" {
			return value
		}
	}
	return ""
}

func (u User) stringField(key string) string {
	raw, ok := u[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// UserFrom converts a decoded JSON value into a User. Anything that is not a
// JSON object yields nil.
func UserFrom(value any) User {
	switch v := value.(type) {
	case User:
		return v
	case map[string]any:
		return User(v)
	default:
		return nil
	}
}
