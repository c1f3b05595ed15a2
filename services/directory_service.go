package services

import (
	"context"
	"dm-relay/contract"
	"dm-relay/session"
	"strings"

	"github.com/samber/lo"
)

// DirectoryService looks up other registered clients by name.
type DirectoryService struct {
	registry contract.Registry
	session  *session.Session
}

func NewDirectoryService(registry contract.Registry, sess *session.Session) *DirectoryService {
	return &DirectoryService{registry: registry, session: sess}
}

// Search returns matching names, without duplicates and without the local
// client itself. A blank query returns nothing and makes no call.
func (s *DirectoryService) Search(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	users, err := s.registry.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	self, _ := s.session.Identity()
	return lo.Filter(lo.Uniq(users), func(name string, _ int) bool {
		return name != "" && name != self.Name
	}), nil
}
