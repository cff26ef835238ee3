package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/shiftreports/internal/domain/client"
	"github.com/geocoder89/shiftreports/internal/domain/report"
	"github.com/geocoder89/shiftreports/internal/domain/user"
)

// Store keeps users, clients and reports behind one lock so multi-entity
// operations (report insert + counter bump, purge + batch bump) are atomic.
type Store struct {
	mu      sync.RWMutex
	users   map[string]user.User
	clients map[string]client.Client
	reports []report.Report // insertion order
	lastAt  time.Time
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:   make(map[string]user.User),
		clients: make(map[string]client.Client),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// users

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, user.ErrEmailTaken
		}
	}

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (s *Store) UserStats(ctx context.Context) ([]user.Stats, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]user.Stats, 0, len(users))
	for _, u := range users {
		out = append(out, u.Stats())
	}
	return out, nil
}

// SetActive flips the active flag. There is no HTTP route for it; seeding and tests use it.
func (s *Store) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

// clients

func (s *Store) ListClients(_ context.Context) ([]client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]client.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}

	// byte-wise, matches ORDER BY name COLLATE "C"
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (s *Store) CreateClient(_ context.Context, req client.CreateClientRequest) (client.Client, error) {
	c := client.NewFromCreateRequest(req)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.clients {
		if existing.Name == c.Name {
			return client.Client{}, client.ErrNameTaken
		}
	}

	s.clients[c.ID] = c
	return c, nil
}

func (s *Store) GetClientByID(_ context.Context, id string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return client.Client{}, client.ErrNotFound
	}
	return c, nil
}

func (s *Store) CountClients(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.clients), nil
}

// reports

func (s *Store) CreateReport(_ context.Context, req report.CreateReportRequest) (report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[req.ClientID]
	if !ok {
		return report.Report{}, client.ErrNotFound
	}

	owner, ok := s.users[req.UserID]
	if !ok {
		return report.Report{}, user.ErrNotFound
	}

	r := report.NewFromCreateRequest(req, c)

	// created_at never goes backwards between inserts
	at := s.now()
	if at.Before(s.lastAt) {
		at = s.lastAt
	}
	s.lastAt = at
	r.CreatedAt = at

	owner.SubmissionsCount++
	owner.UpdatedAt = at
	s.users[owner.ID] = owner
	s.reports = append(s.reports, r)

	return r, nil
}

// ListReportsByOwner returns newest first.
func (s *Store) ListReportsByOwner(_ context.Context, ownerID string) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]report.Report, 0)
	for i := len(s.reports) - 1; i >= 0; i-- {
		if s.reports[i].UserID == ownerID {
			out = append(out, s.reports[i])
		}
	}
	return out, nil
}

// PurgeSubmitted deletes exactly the given reports of the owner and counts one
// delivered batch, all under a single lock.
func (s *Store) PurgeSubmitted(_ context.Context, ownerID string, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.users[ownerID]
	if !ok {
		return 0, user.ErrNotFound
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	kept := s.reports[:0:0]
	var purged int64
	for _, r := range s.reports {
		if _, hit := wanted[r.ID]; hit && r.UserID == ownerID {
			purged++
			continue
		}
		kept = append(kept, r)
	}
	s.reports = kept

	owner.BatchesSent++
	owner.UpdatedAt = s.now()
	s.users[ownerID] = owner

	return purged, nil
}

func (s *Store) Ping(context.Context) error { return nil }
