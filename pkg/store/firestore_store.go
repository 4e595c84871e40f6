package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lostfound/pkg/domain"
)

// FirestoreStore implements Store against the production document database.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to the document database for the given project.
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required to open the document store")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Fields that are operational payload for the matching pipeline and must
// never surface through the API, not even via the extension map.
var hiddenFields = map[string]struct{}{
	"embedding":    {},
	"embeddings":   {},
	"vector":       {},
	"searchVector": {},
}

var foundKnown = fieldSet("ref", "type", "description", "location", "pickupLocation",
	"email", "phone", "volId", "status", "image", "docPath", "createdAt", "updatedAt")

var lostKnown = fieldSet("ref", "type", "description", "additionalDetails", "location",
	"color", "ownerId", "userId", "status", "imageUrl", "createdAt", "updatedAt")

func fieldSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func extraFields(data map[string]any, known map[string]struct{}) domain.Extra {
	var extra domain.Extra
	for key, value := range data {
		if _, ok := known[key]; ok {
			continue
		}
		if _, ok := hiddenFields[key]; ok {
			continue
		}
		if extra == nil {
			extra = make(domain.Extra)
		}
		extra[key] = value
	}
	return extra
}

// found objects

func (s *FirestoreStore) ListFound(ctx context.Context) ([]domain.FoundObject, error) {
	q := s.client.Collection(CollectionFound).OrderBy("createdAt", firestore.Desc)
	return collectFound(ctx, q)
}

func (s *FirestoreStore) ListArchivedFound(ctx context.Context, olderThan time.Time) ([]domain.FoundObject, error) {
	q := s.client.Collection(CollectionFound).
		Where("createdAt", "<", olderThan).
		OrderBy("createdAt", firestore.Desc)
	return collectFound(ctx, q)
}

func (s *FirestoreStore) ListNonDepositedFound(ctx context.Context) ([]domain.FoundObject, error) {
	q := s.client.Collection(CollectionFound).
		Where("pickupLocation", "==", "").
		OrderBy("createdAt", firestore.Desc)
	return collectFound(ctx, q)
}

func collectFound(ctx context.Context, q firestore.Query) ([]domain.FoundObject, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()
	var out []domain.FoundObject
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list found objects: %w", err)
		}
		obj, err := decodeFound(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func decodeFound(doc *firestore.DocumentSnapshot) (domain.FoundObject, error) {
	var obj domain.FoundObject
	if err := doc.DataTo(&obj); err != nil {
		return obj, fmt.Errorf("decode found object %s: %w", doc.Ref.ID, err)
	}
	obj.ID = doc.Ref.ID
	obj.Extra = extraFields(doc.Data(), foundKnown)
	return obj, nil
}

func (s *FirestoreStore) GetFound(ctx context.Context, id string) (domain.FoundObject, error) {
	doc, err := s.client.Collection(CollectionFound).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.FoundObject{}, ErrNotFound
	}
	if err != nil {
		return domain.FoundObject{}, fmt.Errorf("get found object %s: %w", id, err)
	}
	return decodeFound(doc)
}

func (s *FirestoreStore) CreateFound(ctx context.Context, obj domain.FoundObject) (string, error) {
	ref := s.client.Collection(CollectionFound).NewDoc()
	payload := map[string]any{
		"ref":            obj.Ref,
		"type":           obj.Type,
		"description":    obj.Description,
		"location":       obj.Location,
		"pickupLocation": obj.PickupLocation,
		"email":          obj.Email,
		"phone":          obj.Phone,
		"volId":          obj.VolID,
		"status":         string(obj.Status),
		"image":          obj.Image,
		"docPath":        "/" + CollectionFound + "/" + ref.ID,
		"createdAt":      firestore.ServerTimestamp,
		"updatedAt":      nil,
	}
	if _, err := ref.Set(ctx, payload); err != nil {
		return "", fmt.Errorf("create found object: %w", err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) UpdateFound(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, CollectionFound, id, fields)
}

func (s *FirestoreStore) DeleteFound(ctx context.Context, id string) error {
	return s.delete(ctx, CollectionFound, id)
}

// lost objects

func (s *FirestoreStore) ListLost(ctx context.Context) ([]domain.LostObject, error) {
	iter := s.client.Collection(CollectionLost).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()
	var out []domain.LostObject
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list lost objects: %w", err)
		}
		obj, err := decodeLost(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func decodeLost(doc *firestore.DocumentSnapshot) (domain.LostObject, error) {
	var obj domain.LostObject
	if err := doc.DataTo(&obj); err != nil {
		return obj, fmt.Errorf("decode lost object %s: %w", doc.Ref.ID, err)
	}
	obj.ID = doc.Ref.ID
	obj.Extra = extraFields(doc.Data(), lostKnown)
	return obj, nil
}

func (s *FirestoreStore) GetLost(ctx context.Context, id string) (domain.LostObject, error) {
	doc, err := s.client.Collection(CollectionLost).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.LostObject{}, ErrNotFound
	}
	if err != nil {
		return domain.LostObject{}, fmt.Errorf("get lost object %s: %w", id, err)
	}
	return decodeLost(doc)
}

func (s *FirestoreStore) CreateLost(ctx context.Context, obj domain.LostObject) (string, error) {
	if obj.Status == "" {
		obj.Status = domain.LostStatusLost
	}
	ref := s.client.Collection(CollectionLost).NewDoc()
	payload := map[string]any{
		"ref":               obj.Ref,
		"type":              obj.Type,
		"description":       obj.Description,
		"additionalDetails": obj.AdditionalDetails,
		"location":          obj.Location,
		"color":             obj.Colors,
		"ownerId":           obj.OwnerID,
		"userId":            obj.UserID,
		"status":            string(obj.Status),
		"imageUrl":          obj.ImageURL,
		"createdAt":         firestore.ServerTimestamp,
		"updatedAt":         firestore.ServerTimestamp,
	}
	if _, err := ref.Set(ctx, payload); err != nil {
		return "", fmt.Errorf("create lost object: %w", err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) UpdateLost(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, CollectionLost, id, fields)
}

func (s *FirestoreStore) DeleteLost(ctx context.Context, id string) error {
	return s.delete(ctx, CollectionLost, id)
}

func (s *FirestoreStore) CountLostByOwner(ctx context.Context) (map[string]int, error) {
	iter := s.client.Collection(CollectionLost).Documents(ctx)
	defer iter.Stop()
	counts := make(map[string]int)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("count lost objects by owner: %w", err)
		}
		if ownerID, ok := doc.Data()["ownerId"].(string); ok && ownerID != "" {
			counts[ownerID]++
		}
	}
	return counts, nil
}

// owners

func (s *FirestoreStore) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	iter := s.client.Collection(CollectionOwners).Documents(ctx)
	defer iter.Stop()
	var out []domain.Owner
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list owners: %w", err)
		}
		var owner domain.Owner
		if err := doc.DataTo(&owner); err != nil {
			return nil, fmt.Errorf("decode owner %s: %w", doc.Ref.ID, err)
		}
		owner.ID = doc.Ref.ID
		out = append(out, owner)
	}
	return out, nil
}

func (s *FirestoreStore) GetOwner(ctx context.Context, id string) (domain.Owner, error) {
	doc, err := s.client.Collection(CollectionOwners).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.Owner{}, ErrNotFound
	}
	if err != nil {
		return domain.Owner{}, fmt.Errorf("get owner %s: %w", id, err)
	}
	var owner domain.Owner
	if err := doc.DataTo(&owner); err != nil {
		return domain.Owner{}, fmt.Errorf("decode owner %s: %w", id, err)
	}
	owner.ID = doc.Ref.ID
	return owner, nil
}

func (s *FirestoreStore) DeleteOwner(ctx context.Context, id string) error {
	return s.delete(ctx, CollectionOwners, id)
}

// matches

func (s *FirestoreStore) ListMatches(ctx context.Context, matchStatus domain.MatchStatus) ([]domain.Match, error) {
	q := s.client.Collection(CollectionMatches).Query
	if matchStatus != "" {
		q = q.Where("status", "==", string(matchStatus))
	}
	iter := q.Documents(ctx)
	defer iter.Stop()
	var out []domain.Match
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list matches: %w", err)
		}
		m, err := decodeMatch(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func decodeMatch(doc *firestore.DocumentSnapshot) (domain.Match, error) {
	var m domain.Match
	if err := doc.DataTo(&m); err != nil {
		return m, fmt.Errorf("decode match %s: %w", doc.Ref.ID, err)
	}
	m.ID = doc.Ref.ID
	normalizeMatchTimestamp(&m, doc.Data())
	return m, nil
}

// normalizeMatchTimestamp falls back to the legacy createdAt field for
// matches written before the pipeline standardized on timestamp.
func normalizeMatchTimestamp(m *domain.Match, data map[string]any) {
	if !m.Timestamp.IsZero() {
		return
	}
	if ts, ok := data["createdAt"].(time.Time); ok {
		m.Timestamp = ts
	}
}

func (s *FirestoreStore) GetMatch(ctx context.Context, id string) (domain.Match, error) {
	doc, err := s.client.Collection(CollectionMatches).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.Match{}, ErrNotFound
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("get match %s: %w", id, err)
	}
	return decodeMatch(doc)
}

func (s *FirestoreStore) UpdateMatchStatus(ctx context.Context, id string, matchStatus domain.MatchStatus) error {
	return s.update(ctx, CollectionMatches, id, map[string]any{"status": string(matchStatus)})
}

func (s *FirestoreStore) DeleteMatch(ctx context.Context, id string) error {
	return s.delete(ctx, CollectionMatches, id)
}

// pending staging records

func (s *FirestoreStore) ListPending(ctx context.Context) ([]domain.PendingObject, error) {
	iter := s.client.Collection(CollectionPending).OrderBy("timestamp", firestore.Desc).Documents(ctx)
	defer iter.Stop()
	var out []domain.PendingObject
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list pending objects: %w", err)
		}
		var p domain.PendingObject
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("decode pending object %s: %w", doc.Ref.ID, err)
		}
		p.ID = doc.Ref.ID
		out = append(out, p)
	}
	return out, nil
}

// dashboard accounts

func (s *FirestoreStore) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	iter := s.client.Collection(CollectionUsers).Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()
	doc, err := iter.Next()
	if err == iterator.Done {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	var u domain.User
	if err := doc.DataTo(&u); err != nil {
		return domain.User{}, fmt.Errorf("decode user %s: %w", doc.Ref.ID, err)
	}
	u.ID = doc.Ref.ID
	return u, nil
}

// counters

// NextRefCount increments the named counter inside a transaction. The
// transaction primitive retries on contention; when it gives up the error
// is terminal and no count was reserved.
func (s *FirestoreStore) NextRefCount(ctx context.Context, name string) (int64, error) {
	ref := s.client.Collection(CollectionCounters).Doc(name)
	var next int64
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		next = 1
		if snap != nil && snap.Exists() {
			var counter domain.Counter
			if err := snap.DataTo(&counter); err != nil {
				return err
			}
			next = counter.LastCount + 1
		}
		return tx.Set(ref, map[string]any{"lastCount": next}, firestore.MergeAll)
	})
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	return next, nil
}

// helpers

// update applies a partial edit via DocumentRef.Update, which fails with
// NotFound for missing documents. A merge-set would silently create a
// phantom document for a stale id instead.
func (s *FirestoreStore) update(ctx context.Context, collection, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, fieldUpdates(fields))
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

// fieldUpdates turns an edit map into update operations, stamping updatedAt
// server-side.
func fieldUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields)+1)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: fields[k]})
	}
	return append(updates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})
}

func (s *FirestoreStore) delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}
