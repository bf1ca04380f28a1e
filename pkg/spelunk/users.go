package spelunk

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

const usersPath = "/services/authentication/users"

// userService implements the UserService interface
type userService struct {
	client *Client
}

// List retrieves all users
func (s *userService) List(ctx context.Context) ([]*User, error) {
	entries, err := s.client.listAll(ctx, usersPath, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}

	users := make([]*User, 0, len(entries))
	for _, entry := range entries {
		user := &User{Name: entry.Name}
		if len(entry.Content) > 0 {
			if err := json.Unmarshal(entry.Content, user); err != nil {
				return nil, errors.Wrapf(err, "failed to decode user %q", entry.Name)
			}
		}
		user.Name = entry.Name
		users = append(users, user)
	}
	return users, nil
}
