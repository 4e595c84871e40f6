package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"lostfound/pkg/domain"
	"lostfound/pkg/store"
)

type fakePipeline struct {
	mu        sync.Mutex
	notified  []string
	processed []json.RawMessage
	err       error
}

func (f *fakePipeline) NotifyEmbedding(docID, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, docID)
}

func (f *fakePipeline) ProcessPending(context.Context) ([]json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.processed, nil
}

func newTestApp(t *testing.T, st *store.MemoryStore, pipeline MatchPipeline) *App {
	t.Helper()
	a, err := New(Config{
		Store:    st,
		Pipeline: pipeline,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestUpdateFoundRejectsUnknownFieldAndBadStatus(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil)
	id, _ := st.CreateFound(context.Background(), domain.FoundObject{Type: "Valise"})

	if err := a.UpdateFound(context.Background(), id, map[string]any{"embedding": []float64{1}}); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("unknown field err = %v", err)
	}
	if err := a.UpdateFound(context.Background(), id, map[string]any{"status": "vanished"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bad status err = %v", err)
	}
	if err := a.SetFoundStatus(context.Background(), id, "delivered"); err != nil {
		t.Fatalf("valid status: %v", err)
	}
	obj, _ := st.GetFound(context.Background(), id)
	if obj.Status != domain.FoundStatusDelivered {
		t.Fatalf("status = %q", obj.Status)
	}
}

func TestUpdateFoundMissingRecord(t *testing.T) {
	a := newTestApp(t, store.NewMemoryStore(), nil)
	if err := a.SetFoundStatus(context.Background(), "ghost", "found"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestListFoundAppliesFilterAndSearch(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil)
	_, _ = st.CreateFound(context.Background(), domain.FoundObject{Type: "Valise", Status: domain.FoundStatusFound})
	_, _ = st.CreateFound(context.Background(), domain.FoundObject{Type: "Valise", Status: domain.FoundStatusDelivered})
	_, _ = st.CreateFound(context.Background(), domain.FoundObject{Type: "Montre", Status: domain.FoundStatusFound})

	objs, err := a.ListFound(context.Background(), "found", "valise")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objs) != 1 || objs[0].Type != "Valise" {
		t.Fatalf("objs = %+v", objs)
	}
}

func TestCreateLostNotifiesPipeline(t *testing.T) {
	st := store.NewMemoryStore()
	pipeline := &fakePipeline{}
	a := newTestApp(t, st, pipeline)

	id, err := a.CreateLost(context.Background(), domain.LostObject{
		Type:        "Sac",
		Description: "Sac à dos noir",
	})
	if err != nil {
		t.Fatalf("create lost: %v", err)
	}
	obj, _ := st.GetLost(context.Background(), id)
	if obj.Status != domain.LostStatusLost {
		t.Fatalf("default status = %q", obj.Status)
	}
	pipeline.mu.Lock()
	defer pipeline.mu.Unlock()
	if len(pipeline.notified) != 1 || pipeline.notified[0] != id {
		t.Fatalf("notified = %v", pipeline.notified)
	}
}

func TestOwnersCarryLostObjectsCount(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil)
	ownerID := st.AddOwner(domain.Owner{FirstName: "Claire", LastName: "Dupont", Email: "claire@example.com"})
	_, _ = st.CreateLost(context.Background(), domain.LostObject{OwnerID: ownerID})
	_, _ = st.CreateLost(context.Background(), domain.LostObject{OwnerID: ownerID})

	owners, err := a.ListOwners(context.Background(), "")
	if err != nil {
		t.Fatalf("list owners: %v", err)
	}
	if len(owners) != 1 || owners[0].LostObjectsCount != 2 {
		t.Fatalf("owners = %+v", owners)
	}
}

func TestListMatchesEnrichesAndSortsDesc(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil)

	foundID, _ := st.CreateFound(context.Background(), domain.FoundObject{Ref: "FND0001"})
	ownerID := st.AddOwner(domain.Owner{Email: "owner@example.com"})
	lostID, _ := st.CreateLost(context.Background(), domain.LostObject{OwnerID: ownerID})

	older := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	st.AddMatch(domain.Match{FoundID: foundID, LostID: lostID, Status: domain.MatchStatusPending, Timestamp: older})
	st.AddMatch(domain.Match{FoundID: "gone", LostID: "gone", Status: domain.MatchStatusPending, Timestamp: older.Add(time.Hour)})

	matches, err := a.ListMatches(context.Background(), "all")
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d", len(matches))
	}
	// Newest first; its joins failed so enrichment is partial, not an error.
	if matches[0].FoundID != "gone" {
		t.Fatalf("order wrong: %+v", matches[0])
	}
	if matches[0].FoundObjectData != nil || matches[0].LostObjectData != nil {
		t.Fatal("broken joins must leave enrichment empty")
	}
	if matches[1].FoundObjectData == nil || matches[1].LostObjectData == nil {
		t.Fatal("resolvable match should be enriched")
	}
	if matches[1].OwnerEmail != "owner@example.com" {
		t.Fatalf("owner email = %q", matches[1].OwnerEmail)
	}
}

func TestListMatchesLogsFailedJoins(t *testing.T) {
	st := store.NewMemoryStore()
	var logs bytes.Buffer
	a, err := New(Config{Store: st, Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	id := st.AddMatch(domain.Match{FoundID: "gone", LostID: "gone", Status: domain.MatchStatusPending})

	if _, err := a.ListMatches(context.Background(), "all"); err != nil {
		t.Fatalf("list matches: %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, "match_join_failed") {
		t.Fatalf("broken joins must be logged, got %q", out)
	}
	if !strings.Contains(out, id) {
		t.Fatalf("log should name the match, got %q", out)
	}
}

func TestSetMatchStatusTransitions(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil)
	id := st.AddMatch(domain.Match{Status: domain.MatchStatusPending})

	if err := a.SetMatchStatus(context.Background(), id, "accepted"); err != nil {
		t.Fatalf("pending to accepted: %v", err)
	}
	if err := a.SetMatchStatus(context.Background(), id, "rejected"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("accepted to rejected = %v", err)
	}
	if err := a.SetMatchStatus(context.Background(), id, "pending"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("target pending = %v", err)
	}
}

func TestSearchSpansCollections(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil)
	_, _ = st.CreateFound(context.Background(), domain.FoundObject{Description: "Black Samsung Phone"})
	_, _ = st.CreateLost(context.Background(), domain.LostObject{Description: "black wallet"})
	st.AddOwner(domain.Owner{LastName: "Blackwell"})

	results, err := a.Search(context.Background(), "black")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results.FoundObjects) != 1 || len(results.LostObjects) != 1 || len(results.Owners) != 1 {
		t.Fatalf("results = %+v", results)
	}
	if len(results.FoundObjects[0].Display) == 0 {
		t.Fatal("hits must carry display fields")
	}

	if _, err := a.Search(context.Background(), ""); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("empty query err = %v", err)
	}
}

func TestSearchReferenceCodeIsExact(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil)
	_, _ = st.CreateFound(context.Background(), domain.FoundObject{Ref: "FND0001", Description: "valise bleue"})
	_, _ = st.CreateFound(context.Background(), domain.FoundObject{Ref: "FND0002", Description: "retrouvé près du FND0001"})

	results, err := a.Search(context.Background(), "fnd0001")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results.FoundObjects) != 1 {
		t.Fatalf("found hits = %d, want the exact code only", len(results.FoundObjects))
	}
	if got := results.FoundObjects[0].Record.(domain.FoundObject).Ref; got != "FND0001" {
		t.Fatalf("hit ref = %q", got)
	}

	// A code nobody issued yet matches nothing rather than falling back to
	// substring search.
	results, err = a.Search(context.Background(), "FND9999")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results.FoundObjects) != 0 {
		t.Fatalf("found hits = %d, want none", len(results.FoundObjects))
	}
}

func TestStats(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil)
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	_, _ = st.CreateFound(context.Background(), domain.FoundObject{CreatedAt: now.Add(-24 * time.Hour)})
	lostID, _ := st.CreateLost(context.Background(), domain.LostObject{CreatedAt: now.Add(-48 * time.Hour)})
	st.AddOwner(domain.Owner{Email: "o@example.com"})
	st.AddMatch(domain.Match{LostID: lostID, Status: domain.MatchStatusAccepted, Timestamp: now.Add(-24 * time.Hour)})
	st.AddMatch(domain.Match{LostID: lostID, Status: domain.MatchStatusPending, Timestamp: now})

	got, err := a.Stats(context.Background(), 7)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got.Overview.TotalObjects != 2 || got.Overview.TotalMatches != 1 {
		t.Fatalf("overview = %+v", got.Overview)
	}
	if len(got.Daily) != 7 {
		t.Fatalf("daily = %d", len(got.Daily))
	}
	if got.KPIs.AverageResponseDays != 1 {
		t.Fatalf("avg days = %v", got.KPIs.AverageResponseDays)
	}
}

func TestArchivedAndNonDepositedViews(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	_, _ = st.CreateFound(context.Background(), domain.FoundObject{Ref: "OLD", CreatedAt: now.AddDate(0, 0, -91), PickupLocation: "Comptoir A"})
	_, _ = st.CreateFound(context.Background(), domain.FoundObject{Ref: "EDGE", CreatedAt: now.AddDate(0, 0, -89), PickupLocation: "Comptoir A"})
	_, _ = st.CreateFound(context.Background(), domain.FoundObject{Ref: "LOOSE", CreatedAt: now, PickupLocation: ""})

	archived, err := a.Archived(context.Background())
	if err != nil {
		t.Fatalf("archived: %v", err)
	}
	if len(archived) != 1 || archived[0].Ref != "OLD" {
		t.Fatalf("archived = %+v", archived)
	}

	loose, err := a.NonDeposited(context.Background())
	if err != nil {
		t.Fatalf("non-deposited: %v", err)
	}
	if len(loose) != 1 || loose[0].Ref != "LOOSE" {
		t.Fatalf("non-deposited = %+v", loose)
	}
}

func TestPendingView(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil)
	st.AddPending(domain.PendingObject{DocID: "d1", Description: "sac bleu", Type: "found"})
	st.AddPending(domain.PendingObject{DocID: "", Description: "desc", Type: "found"})
	st.AddPending(domain.PendingObject{DocID: "d3", Description: "desc", Type: "weird"})

	view, err := a.Pending(context.Background(), "")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if view.Total != 3 || view.ReadyCount != 1 {
		t.Fatalf("view = %+v", view)
	}

	// Counts follow the filtered set, not the whole staging collection.
	view, err = a.Pending(context.Background(), "sac bleu")
	if err != nil {
		t.Fatalf("filtered pending: %v", err)
	}
	if view.Total != 1 || view.ReadyCount != 1 || view.Items[0].DocID != "d1" {
		t.Fatalf("filtered view = %+v", view)
	}
}

func TestProcessPending(t *testing.T) {
	st := store.NewMemoryStore()
	pipeline := &fakePipeline{processed: []json.RawMessage{json.RawMessage(`{"docId":"a"}`)}}
	a := newTestApp(t, st, pipeline)

	processed, err := a.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(processed) != 1 {
		t.Fatalf("processed = %d", len(processed))
	}

	pipeline.err = errors.New("pipeline down")
	if _, err := a.ProcessPending(context.Background()); err == nil {
		t.Fatal("pipeline errors must surface")
	}
}

func TestDeleteFoundCascadesImageBestEffort(t *testing.T) {
	st := store.NewMemoryStore()
	images := &rememberingImages{}
	a, err := New(Config{
		Store:  st,
		Images: images,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	id, _ := st.CreateFound(context.Background(), domain.FoundObject{Image: "https://cdn.example.com/b/found_images/x.jpg"})
	if err := a.DeleteFound(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetFound(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("document should be gone")
	}
	if len(images.deleted) != 1 {
		t.Fatalf("deleted urls = %v", images.deleted)
	}

	// A failing image delete must not resurrect the operation's error.
	images.err = errors.New("storage down")
	id2, _ := st.CreateFound(context.Background(), domain.FoundObject{Image: "https://cdn.example.com/b/found_images/y.jpg"})
	if err := a.DeleteFound(context.Background(), id2); err != nil {
		t.Fatalf("delete with failing storage: %v", err)
	}
}

type rememberingImages struct {
	deleted []string
	err     error
}

func (r *rememberingImages) Put(context.Context, string, io.Reader, int64, string) error {
	return nil
}

func (r *rememberingImages) URL(key string) string { return key }

func (r *rememberingImages) DeleteByURL(_ context.Context, url string) error {
	if r.err != nil {
		return r.err
	}
	r.deleted = append(r.deleted, url)
	return nil
}

func (r *rememberingImages) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", nil
}
