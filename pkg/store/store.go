// Package store provides access to the lost-and-found document collections.
// The document database is authoritative for all records; this package only
// maps operations onto it.
package store

import (
	"context"
	"errors"
	"time"

	"lostfound/pkg/domain"
)

// Collection names as they exist in the document database.
const (
	CollectionFound    = "foundObjects"
	CollectionLost     = "lostObjects"
	CollectionOwners   = "ownersData"
	CollectionMatches  = "matches"
	CollectionPending  = "objects_pending"
	CollectionCounters = "counters"
	CollectionUsers    = "users"
)

// ErrNotFound is returned by Get operations when no document matches.
var ErrNotFound = errors.New("document not found")

// Store is the document-database access layer shared by the admin and
// intake services.
type Store interface {
	// Found objects. Listings are ordered by createdAt descending.
	ListFound(ctx context.Context) ([]domain.FoundObject, error)
	GetFound(ctx context.Context, id string) (domain.FoundObject, error)
	CreateFound(ctx context.Context, obj domain.FoundObject) (string, error)
	UpdateFound(ctx context.Context, id string, fields map[string]any) error
	DeleteFound(ctx context.Context, id string) error
	// ListArchivedFound returns found objects created strictly before the
	// cutoff, as a server-side range query.
	ListArchivedFound(ctx context.Context, olderThan time.Time) ([]domain.FoundObject, error)
	// ListNonDepositedFound matches pickupLocation == "" exactly. Documents
	// missing the field entirely are not returned; that mirrors the stored
	// data and is a known edge of this view.
	ListNonDepositedFound(ctx context.Context) ([]domain.FoundObject, error)

	// Lost objects.
	ListLost(ctx context.Context) ([]domain.LostObject, error)
	GetLost(ctx context.Context, id string) (domain.LostObject, error)
	CreateLost(ctx context.Context, obj domain.LostObject) (string, error)
	UpdateLost(ctx context.Context, id string, fields map[string]any) error
	DeleteLost(ctx context.Context, id string) error
	// CountLostByOwner aggregates lost objects per ownerId at read time.
	CountLostByOwner(ctx context.Context) (map[string]int, error)

	// Owners.
	ListOwners(ctx context.Context) ([]domain.Owner, error)
	GetOwner(ctx context.Context, id string) (domain.Owner, error)
	DeleteOwner(ctx context.Context, id string) error

	// Matches. An empty status lists all matches.
	ListMatches(ctx context.Context, status domain.MatchStatus) ([]domain.Match, error)
	GetMatch(ctx context.Context, id string) (domain.Match, error)
	UpdateMatchStatus(ctx context.Context, id string, status domain.MatchStatus) error
	DeleteMatch(ctx context.Context, id string) error

	// Pending staging records, ordered by timestamp descending.
	ListPending(ctx context.Context) ([]domain.PendingObject, error)

	// Dashboard accounts.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// NextRefCount atomically increments the named counter and returns the
	// new value. Concurrent callers never observe the same count; when the
	// underlying transaction gives up after retries the error is terminal
	// and no count was reserved.
	NextRefCount(ctx context.Context, name string) (int64, error)
}
