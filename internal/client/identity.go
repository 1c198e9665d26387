package client

import (
	"context"
	"net/url"
)

// User is the identity view of a customer.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// UserClient reads users from the identity service.
type UserClient struct {
	baseClient
}

func NewUserClient(cfg Config) *UserClient {
	return &UserClient{baseClient: newBaseClient("user-service", cfg)}
}

// GetUser returns nil, nil when the user does not exist.
func (c *UserClient) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	found, err := c.getJSON(ctx, "/api/users/"+url.PathEscape(userID), &u)
	if err != nil || !found {
		return nil, err
	}
	if u.ID == "" {
		u.ID = userID
	}
	return &u, nil
}
