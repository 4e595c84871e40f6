package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lostfound/internal/util"
	"lostfound/pkg/domain"
)

// MemoryStore keeps the collections in-process. It backs tests and local
// development without a document database.
type MemoryStore struct {
	mu       sync.RWMutex
	found    map[string]domain.FoundObject
	lost     map[string]domain.LostObject
	owners   map[string]domain.Owner
	matches  map[string]domain.Match
	pending  map[string]domain.PendingObject
	users    map[string]domain.User // key: lowercased email
	counters map[string]int64
}

// NewMemoryStore initializes empty collections.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		found:    make(map[string]domain.FoundObject),
		lost:     make(map[string]domain.LostObject),
		owners:   make(map[string]domain.Owner),
		matches:  make(map[string]domain.Match),
		pending:  make(map[string]domain.PendingObject),
		users:    make(map[string]domain.User),
		counters: make(map[string]int64),
	}
}

// found objects

func (m *MemoryStore) ListFound(_ context.Context) ([]domain.FoundObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.FoundObject, 0, len(m.found))
	for _, obj := range m.found {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListArchivedFound(_ context.Context, olderThan time.Time) ([]domain.FoundObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.FoundObject
	for _, obj := range m.found {
		if obj.CreatedAt.Before(olderThan) {
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListNonDepositedFound(_ context.Context) ([]domain.FoundObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.FoundObject
	for _, obj := range m.found {
		if obj.PickupLocation == "" {
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetFound(_ context.Context, id string) (domain.FoundObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.found[id]
	if !ok {
		return domain.FoundObject{}, ErrNotFound
	}
	return obj, nil
}

func (m *MemoryStore) CreateFound(_ context.Context, obj domain.FoundObject) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := util.NewID()
	obj.ID = id
	obj.DocPath = "/" + CollectionFound + "/" + id
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now().UTC()
	}
	m.found[id] = obj
	return id, nil
}

func (m *MemoryStore) UpdateFound(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.found[id]
	if !ok {
		return ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "type":
			obj.Type, _ = value.(string)
		case "description":
			obj.Description, _ = value.(string)
		case "location":
			obj.Location, _ = value.(string)
		case "pickupLocation":
			obj.PickupLocation, _ = value.(string)
		case "email":
			obj.Email, _ = value.(string)
		case "phone":
			obj.Phone, _ = value.(string)
		case "volId":
			obj.VolID, _ = value.(string)
		case "status":
			if s, ok := value.(string); ok {
				obj.Status = domain.FoundStatus(s)
			}
		case "image":
			obj.Image, _ = value.(string)
		}
	}
	now := time.Now().UTC()
	obj.UpdatedAt = &now
	m.found[id] = obj
	return nil
}

func (m *MemoryStore) DeleteFound(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.found, id)
	return nil
}

// lost objects

func (m *MemoryStore) ListLost(_ context.Context) ([]domain.LostObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.LostObject, 0, len(m.lost))
	for _, obj := range m.lost {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetLost(_ context.Context, id string) (domain.LostObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.lost[id]
	if !ok {
		return domain.LostObject{}, ErrNotFound
	}
	return obj, nil
}

func (m *MemoryStore) CreateLost(_ context.Context, obj domain.LostObject) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := util.NewID()
	obj.ID = id
	if obj.Status == "" {
		obj.Status = domain.LostStatusLost
	}
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now().UTC()
	}
	m.lost[id] = obj
	return id, nil
}

func (m *MemoryStore) UpdateLost(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.lost[id]
	if !ok {
		return ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "type":
			obj.Type, _ = value.(string)
		case "description":
			obj.Description, _ = value.(string)
		case "additionalDetails":
			obj.AdditionalDetails, _ = value.(string)
		case "location":
			obj.Location, _ = value.(string)
		case "ownerId":
			obj.OwnerID, _ = value.(string)
		case "status":
			if s, ok := value.(string); ok {
				obj.Status = domain.LostStatus(s)
			}
		case "imageUrl":
			obj.ImageURL, _ = value.(string)
		}
	}
	now := time.Now().UTC()
	obj.UpdatedAt = &now
	m.lost[id] = obj
	return nil
}

func (m *MemoryStore) DeleteLost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lost, id)
	return nil
}

func (m *MemoryStore) CountLostByOwner(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, obj := range m.lost {
		if obj.OwnerID != "" {
			counts[obj.OwnerID]++
		}
	}
	return counts, nil
}

// owners

func (m *MemoryStore) ListOwners(_ context.Context) ([]domain.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Owner, 0, len(m.owners))
	for _, owner := range m.owners {
		out = append(out, owner)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetOwner(_ context.Context, id string) (domain.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[id]
	if !ok {
		return domain.Owner{}, ErrNotFound
	}
	return owner, nil
}

// AddOwner seeds an owner record, assigning an id when absent.
func (m *MemoryStore) AddOwner(owner domain.Owner) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner.ID == "" {
		owner.ID = util.NewID()
	}
	m.owners[owner.ID] = owner
	return owner.ID
}

func (m *MemoryStore) DeleteOwner(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owners, id)
	return nil
}

// matches

func (m *MemoryStore) ListMatches(_ context.Context, status domain.MatchStatus) ([]domain.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Match
	for _, match := range m.matches {
		if status == "" || match.Status == status {
			out = append(out, match)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetMatch(_ context.Context, id string) (domain.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	if !ok {
		return domain.Match{}, ErrNotFound
	}
	return match, nil
}

// AddMatch seeds a match record, assigning an id when absent.
func (m *MemoryStore) AddMatch(match domain.Match) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match.ID == "" {
		match.ID = util.NewID()
	}
	m.matches[match.ID] = match
	return match.ID
}

func (m *MemoryStore) UpdateMatchStatus(_ context.Context, id string, status domain.MatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return ErrNotFound
	}
	match.Status = status
	m.matches[id] = match
	return nil
}

func (m *MemoryStore) DeleteMatch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.matches, id)
	return nil
}

// pending staging records

func (m *MemoryStore) ListPending(_ context.Context) ([]domain.PendingObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.PendingObject, 0, len(m.pending))
	for _, p := range m.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// AddPending seeds a staging record, assigning an id when absent.
func (m *MemoryStore) AddPending(p domain.PendingObject) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = util.NewID()
	}
	m.pending[p.ID] = p
	return p.ID
}

// dashboard accounts

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

// AddUser seeds a dashboard account keyed by email.
func (m *MemoryStore) AddUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = util.NewID()
	}
	m.users[strings.ToLower(u.Email)] = u
}

// RemoveUser drops a dashboard account.
func (m *MemoryStore) RemoveUser(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, strings.ToLower(email))
}

// counters

func (m *MemoryStore) NextRefCount(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
	return m.counters[name], nil
}
