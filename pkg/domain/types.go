package domain

import "time"

type FoundStatus string

const (
	FoundStatusFound     FoundStatus = "found"
	FoundStatusDelivered FoundStatus = "delivered"
	FoundStatusReturned  FoundStatus = "returned"
	FoundStatusMatched   FoundStatus = "matched"
)

type LostStatus string

const (
	LostStatusLost      LostStatus = "lost"
	LostStatusFound     LostStatus = "found"
	LostStatusMatched   LostStatus = "matched"
	LostStatusDelivered LostStatus = "delivered"
)

type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusAccepted MatchStatus = "accepted"
	MatchStatusRejected MatchStatus = "rejected"
)

type UserRole string

const (
	RoleStaff UserRole = "staff"
	RoleAdmin UserRole = "admin"
)

// Extra carries document fields that are not part of the closed record
// shape. They are kept for display only and never written back.
type Extra map[string]any

// FoundObject is a report of an item discovered by staff or travelers.
type FoundObject struct {
	ID             string      `json:"id" firestore:"-"`
	Ref            string      `json:"ref" firestore:"ref"`
	Type           string      `json:"type" firestore:"type"`
	Description    string      `json:"description" firestore:"description"`
	Location       string      `json:"location" firestore:"location"`
	PickupLocation string      `json:"pickupLocation" firestore:"pickupLocation"`
	Email          string      `json:"email,omitempty" firestore:"email"`
	Phone          string      `json:"phone,omitempty" firestore:"phone"`
	VolID          string      `json:"volId" firestore:"volId"`
	Status         FoundStatus `json:"status" firestore:"status"`
	Image          string      `json:"image" firestore:"image"`
	DocPath        string      `json:"-" firestore:"docPath"`
	CreatedAt      time.Time   `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      *time.Time  `json:"updatedAt,omitempty" firestore:"updatedAt"`
	Extra          Extra       `json:"extra,omitempty" firestore:"-"`
}

// LostObject is an item reported missing by an owner.
type LostObject struct {
	ID                string     `json:"id" firestore:"-"`
	Ref               string     `json:"ref,omitempty" firestore:"ref"`
	Type              string     `json:"type" firestore:"type"`
	Description       string     `json:"description" firestore:"description"`
	AdditionalDetails string     `json:"additionalDetails,omitempty" firestore:"additionalDetails"`
	Location          string     `json:"location" firestore:"location"`
	Colors            []string   `json:"color,omitempty" firestore:"color"`
	OwnerID           string     `json:"ownerId,omitempty" firestore:"ownerId"`
	UserID            string     `json:"userId,omitempty" firestore:"userId"`
	Status            LostStatus `json:"status" firestore:"status"`
	ImageURL          string     `json:"imageUrl,omitempty" firestore:"imageUrl"`
	CreatedAt         time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty" firestore:"updatedAt"`
	Extra             Extra      `json:"extra,omitempty" firestore:"-"`
}

// Owner is the person who filed a lost-object report.
// LostObjectsCount is derived at read time by counting lost objects whose
// ownerId points here; it is never stored.
type Owner struct {
	ID               string    `json:"id" firestore:"-"`
	FirstName        string    `json:"firstName" firestore:"firstName"`
	LastName         string    `json:"lastName" firestore:"lastName"`
	Email            string    `json:"email" firestore:"email"`
	Phone            string    `json:"phone,omitempty" firestore:"phone"`
	PNR              string    `json:"PNR,omitempty" firestore:"PNR"`
	UserID           string    `json:"userId,omitempty" firestore:"userId"`
	CreatedAt        time.Time `json:"createdAt" firestore:"createdAt"`
	LostObjectsCount int       `json:"lostObjectsCount" firestore:"-"`
}

// Match pairs a found object with a lost object, scored by the matching
// service. The enrichment fields are display-time joins and never persisted.
type Match struct {
	ID        string      `json:"id" firestore:"-"`
	FoundID   string      `json:"foundId" firestore:"foundId"`
	LostID    string      `json:"lostId" firestore:"lostId"`
	Score     float64     `json:"score" firestore:"score"`
	Status    MatchStatus `json:"status" firestore:"status"`
	UserID    string      `json:"userId,omitempty" firestore:"userId"`
	Timestamp time.Time   `json:"timestamp" firestore:"timestamp"`

	FoundObjectData *FoundObject `json:"foundObjectData,omitempty" firestore:"-"`
	LostObjectData  *LostObject  `json:"lostObjectData,omitempty" firestore:"-"`
	OwnerEmail      string       `json:"ownerEmail,omitempty" firestore:"-"`
}

// PendingObject is a staging record awaiting embedding generation.
type PendingObject struct {
	ID          string    `json:"id" firestore:"-"`
	DocID       string    `json:"docId" firestore:"docId"`
	Type        string    `json:"type" firestore:"type"`
	Description string    `json:"description" firestore:"description"`
	Timestamp   time.Time `json:"timestamp" firestore:"timestamp"`
}

// Ready reports whether the record can be handed to the matching service.
func (p PendingObject) Ready() bool {
	if p.DocID == "" || p.Description == "" {
		return false
	}
	return p.Type == "found" || p.Type == "lost"
}

// Counter backs sequential reference codes. Mutated only inside a store
// transaction.
type Counter struct {
	LastCount int64 `firestore:"lastCount"`
}

// User is a dashboard account record from the users collection. Credentials
// live with the identity provider; this record only gates dashboard access.
type User struct {
	ID        string    `json:"id" firestore:"-"`
	Email     string    `json:"email" firestore:"email"`
	Role      UserRole  `json:"role" firestore:"role"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// IsAdmin reports whether the account may administer the dashboard.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// MatchStatusTransitionAllowed enforces the pending-only transition rule.
func MatchStatusTransitionAllowed(from, to MatchStatus) bool {
	if from != MatchStatusPending {
		return false
	}
	return to == MatchStatusAccepted || to == MatchStatusRejected
}
