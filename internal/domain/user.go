package domain

import "context"

// User is the public profile a client announces for presence and the
// sender shape embedded in messages. Credentials live elsewhere.
type User struct {
	ID       string `json:"id" bson:"_id"`
	Username string `json:"username" bson:"username"`
	Avatar   string `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Status   string `json:"status,omitempty" bson:"status,omitempty"`
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Upsert(ctx context.Context, user *User) error
}
