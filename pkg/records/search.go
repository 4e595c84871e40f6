package records

import (
	"strings"

	"lostfound/pkg/domain"
)

// MatchesTerm reports whether any field contains the term, case-insensitive.
// An empty term matches everything.
func MatchesTerm(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range fields {
		if field == "" {
			continue
		}
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// StatusMatches applies the dashboard status filter. "all" or an empty
// filter passes every record; anything else requires an exact match.
func StatusMatches(filter, status string) bool {
	if filter == "" || filter == "all" {
		return true
	}
	return filter == status
}

// Searchable field sets per collection. Only these fields participate in
// substring search; everything else, embeddings included, is ignored.

func foundSearchFields(o domain.FoundObject) []string {
	return []string{o.Ref, o.Description, o.Type, o.Location, o.Email, o.Phone, o.VolID, string(o.Status)}
}

func lostSearchFields(o domain.LostObject) []string {
	return []string{o.Ref, o.Description, o.Type, o.Location, o.AdditionalDetails, o.OwnerID, o.UserID, string(o.Status)}
}

func ownerSearchFields(o domain.Owner) []string {
	return []string{o.ID, o.FirstName, o.LastName, o.Email, o.Phone, o.PNR, o.UserID}
}

func matchSearchFields(m domain.Match) []string {
	return []string{m.ID, m.FoundID, m.LostID, m.UserID, string(m.Status)}
}

func pendingSearchFields(p domain.PendingObject) []string {
	return []string{p.DocID, p.Description, p.Type}
}

// SearchFound returns the found objects whose searchable fields contain term.
func SearchFound(objs []domain.FoundObject, term string) []domain.FoundObject {
	out := make([]domain.FoundObject, 0, len(objs))
	for _, obj := range objs {
		if MatchesTerm(term, foundSearchFields(obj)...) {
			out = append(out, obj)
		}
	}
	return out
}

// SearchLost returns the lost objects whose searchable fields contain term.
func SearchLost(objs []domain.LostObject, term string) []domain.LostObject {
	out := make([]domain.LostObject, 0, len(objs))
	for _, obj := range objs {
		if MatchesTerm(term, lostSearchFields(obj)...) {
			out = append(out, obj)
		}
	}
	return out
}

// SearchOwners returns the owners whose searchable fields contain term.
func SearchOwners(owners []domain.Owner, term string) []domain.Owner {
	out := make([]domain.Owner, 0, len(owners))
	for _, owner := range owners {
		if MatchesTerm(term, ownerSearchFields(owner)...) {
			out = append(out, owner)
		}
	}
	return out
}

// SearchMatches returns the matches whose searchable fields contain term.
func SearchMatches(matches []domain.Match, term string) []domain.Match {
	out := make([]domain.Match, 0, len(matches))
	for _, m := range matches {
		if MatchesTerm(term, matchSearchFields(m)...) {
			out = append(out, m)
		}
	}
	return out
}

// SearchPending returns the staging records whose fields contain term.
func SearchPending(pending []domain.PendingObject, term string) []domain.PendingObject {
	out := make([]domain.PendingObject, 0, len(pending))
	for _, p := range pending {
		if MatchesTerm(term, pendingSearchFields(p)...) {
			out = append(out, p)
		}
	}
	return out
}

// FilterFoundByStatus applies the status filter to found objects.
func FilterFoundByStatus(objs []domain.FoundObject, filter string) []domain.FoundObject {
	out := make([]domain.FoundObject, 0, len(objs))
	for _, obj := range objs {
		if StatusMatches(filter, string(obj.Status)) {
			out = append(out, obj)
		}
	}
	return out
}

// FilterLostByStatus applies the status filter to lost objects.
func FilterLostByStatus(objs []domain.LostObject, filter string) []domain.LostObject {
	out := make([]domain.LostObject, 0, len(objs))
	for _, obj := range objs {
		if StatusMatches(filter, string(obj.Status)) {
			out = append(out, obj)
		}
	}
	return out
}
