package store

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"lostfound/pkg/domain"
)

func TestFieldUpdatesStampsUpdatedAt(t *testing.T) {
	updates := fieldUpdates(map[string]any{
		"status":         "delivered",
		"pickupLocation": "Comptoir B",
	})
	if len(updates) != 3 {
		t.Fatalf("updates = %+v", updates)
	}
	if updates[0].Path != "pickupLocation" || updates[1].Path != "status" {
		t.Fatalf("paths = %q, %q", updates[0].Path, updates[1].Path)
	}
	last := updates[len(updates)-1]
	if last.Path != "updatedAt" || last.Value != firestore.ServerTimestamp {
		t.Fatalf("last update = %+v", last)
	}
}

func TestNormalizeMatchTimestampLegacyCreatedAt(t *testing.T) {
	legacy := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

	var m domain.Match
	normalizeMatchTimestamp(&m, map[string]any{"createdAt": legacy})
	if !m.Timestamp.Equal(legacy) {
		t.Fatalf("timestamp = %v", m.Timestamp)
	}

	// A populated timestamp wins over the legacy field.
	current := legacy.Add(48 * time.Hour)
	m = domain.Match{Timestamp: current}
	normalizeMatchTimestamp(&m, map[string]any{"createdAt": legacy})
	if !m.Timestamp.Equal(current) {
		t.Fatalf("timestamp = %v", m.Timestamp)
	}

	// Neither field present leaves the zero value.
	m = domain.Match{}
	normalizeMatchTimestamp(&m, map[string]any{})
	if !m.Timestamp.IsZero() {
		t.Fatalf("timestamp = %v", m.Timestamp)
	}
}
