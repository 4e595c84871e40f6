// Package app implements the dashboard operations behind the admin HTTP
// surface: record CRUD, views, search, stats and the matching-pipeline
// triggers.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"lostfound/internal/refcode"
	"lostfound/pkg/domain"
	"lostfound/pkg/records"
	"lostfound/pkg/report"
	"lostfound/pkg/stats"
	"lostfound/pkg/storage"
	"lostfound/pkg/store"
)

const defaultArchiveAfter = 90 * 24 * time.Hour

// MatchPipeline is the external embedding/matching service surface the app
// needs.
type MatchPipeline interface {
	NotifyEmbedding(docID, description, kind string)
	ProcessPending(ctx context.Context) ([]json.RawMessage, error)
}

// Config wires the app's collaborators.
type Config struct {
	Store        store.Store
	Images       storage.ImageStore
	Pipeline     MatchPipeline
	ArchiveAfter time.Duration
	Logger       *slog.Logger
}

// App owns the dashboard business logic.
type App struct {
	store        store.Store
	images       storage.ImageStore
	pipeline     MatchPipeline
	submitter    *report.Submitter
	archiveAfter time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// New constructs the app core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("app requires a store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	archiveAfter := cfg.ArchiveAfter
	if archiveAfter <= 0 {
		archiveAfter = defaultArchiveAfter
	}
	var notifier report.EmbeddingNotifier
	if cfg.Pipeline != nil {
		notifier = cfg.Pipeline
	}
	return &App{
		store:        cfg.Store,
		images:       cfg.Images,
		pipeline:     cfg.Pipeline,
		submitter:    report.NewSubmitter(cfg.Store, cfg.Images, notifier, logger),
		archiveAfter: archiveAfter,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// editable fields per collection. Updates touching anything else are
// rejected before reaching the store.
var foundEditable = map[string]bool{
	"type": true, "description": true, "location": true,
	"pickupLocation": true, "email": true, "phone": true,
	"volId": true, "status": true, "image": true,
}

var lostEditable = map[string]bool{
	"type": true, "description": true, "additionalDetails": true,
	"location": true, "ownerId": true, "status": true, "imageUrl": true,
}

var foundStatuses = map[domain.FoundStatus]bool{
	domain.FoundStatusFound:     true,
	domain.FoundStatusDelivered: true,
	domain.FoundStatusReturned:  true,
	domain.FoundStatusMatched:   true,
}

var lostStatuses = map[domain.LostStatus]bool{
	domain.LostStatusLost:      true,
	domain.LostStatusFound:     true,
	domain.LostStatusMatched:   true,
	domain.LostStatusDelivered: true,
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// found objects

// ListFound returns found objects, newest first, optionally narrowed by the
// dashboard status filter and search term.
func (a *App) ListFound(ctx context.Context, statusFilter, term string) ([]domain.FoundObject, error) {
	objs, err := a.store.ListFound(ctx)
	if err != nil {
		return nil, fmt.Errorf("list found objects: %w", err)
	}
	objs = records.FilterFoundByStatus(objs, statusFilter)
	return records.SearchFound(objs, term), nil
}

func (a *App) GetFound(ctx context.Context, id string) (domain.FoundObject, error) {
	obj, err := a.store.GetFound(ctx, id)
	if err != nil {
		return domain.FoundObject{}, mapStoreErr(err)
	}
	return obj, nil
}

// SubmitFound runs the shared found-report submission flow.
func (a *App) SubmitFound(ctx context.Context, sub report.Submission, img *report.Image) (report.Result, error) {
	return a.submitter.Submit(ctx, sub, img)
}

// UpdateFound applies a partial edit. Only whitelisted fields pass; a status
// value must be in the found status set.
func (a *App) UpdateFound(ctx context.Context, id string, fields map[string]any) error {
	for key := range fields {
		if !foundEditable[key] {
			return fmt.Errorf("%w: %s", ErrInvalidField, key)
		}
	}
	if raw, ok := fields["status"]; ok {
		status, _ := raw.(string)
		if !foundStatuses[domain.FoundStatus(status)] {
			return fmt.Errorf("%w: %v", ErrInvalidStatus, raw)
		}
	}
	return mapStoreErr(a.store.UpdateFound(ctx, id, fields))
}

// SetFoundStatus updates just the status field.
func (a *App) SetFoundStatus(ctx context.Context, id string, status string) error {
	return a.UpdateFound(ctx, id, map[string]any{"status": status})
}

// DeleteFound removes the document and, best effort, its stored image.
func (a *App) DeleteFound(ctx context.Context, id string) error {
	obj, err := a.store.GetFound(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}
	if err := a.store.DeleteFound(ctx, id); err != nil {
		return fmt.Errorf("delete found object: %w", err)
	}
	if obj.Image != "" && a.images != nil {
		if err := a.images.DeleteByURL(ctx, obj.Image); err != nil {
			a.logger.Warn("image_delete_failed", "doc_id", id, "url", obj.Image, "error", err)
		}
	}
	return nil
}

// lost objects

func (a *App) ListLost(ctx context.Context, statusFilter, term string) ([]domain.LostObject, error) {
	objs, err := a.store.ListLost(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lost objects: %w", err)
	}
	objs = records.FilterLostByStatus(objs, statusFilter)
	return records.SearchLost(objs, term), nil
}

func (a *App) GetLost(ctx context.Context, id string) (domain.LostObject, error) {
	obj, err := a.store.GetLost(ctx, id)
	if err != nil {
		return domain.LostObject{}, mapStoreErr(err)
	}
	return obj, nil
}

// CreateLost stores a lost-object report filed on behalf of an owner and
// notifies the matching pipeline.
func (a *App) CreateLost(ctx context.Context, obj domain.LostObject) (string, error) {
	if obj.Status == "" {
		obj.Status = domain.LostStatusLost
	}
	if !lostStatuses[obj.Status] {
		return "", fmt.Errorf("%w: %s", ErrInvalidStatus, obj.Status)
	}
	id, err := a.store.CreateLost(ctx, obj)
	if err != nil {
		return "", fmt.Errorf("create lost object: %w", err)
	}
	if a.pipeline != nil && obj.Description != "" {
		a.pipeline.NotifyEmbedding(id, obj.Description, "lost")
	}
	return id, nil
}

func (a *App) UpdateLost(ctx context.Context, id string, fields map[string]any) error {
	for key := range fields {
		if !lostEditable[key] {
			return fmt.Errorf("%w: %s", ErrInvalidField, key)
		}
	}
	if raw, ok := fields["status"]; ok {
		status, _ := raw.(string)
		if !lostStatuses[domain.LostStatus(status)] {
			return fmt.Errorf("%w: %v", ErrInvalidStatus, raw)
		}
	}
	return mapStoreErr(a.store.UpdateLost(ctx, id, fields))
}

func (a *App) SetLostStatus(ctx context.Context, id string, status string) error {
	return a.UpdateLost(ctx, id, map[string]any{"status": status})
}

func (a *App) DeleteLost(ctx context.Context, id string) error {
	if _, err := a.store.GetLost(ctx, id); err != nil {
		return mapStoreErr(err)
	}
	return mapStoreErr(a.store.DeleteLost(ctx, id))
}

// owners

// ListOwners returns owners with their read-time lost-object counts.
func (a *App) ListOwners(ctx context.Context, term string) ([]domain.Owner, error) {
	owners, err := a.store.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	counts, err := a.store.CountLostByOwner(ctx)
	if err != nil {
		return nil, fmt.Errorf("count lost by owner: %w", err)
	}
	for i := range owners {
		owners[i].LostObjectsCount = counts[owners[i].ID]
	}
	return records.SearchOwners(owners, term), nil
}

func (a *App) DeleteOwner(ctx context.Context, id string) error {
	if _, err := a.store.GetOwner(ctx, id); err != nil {
		return mapStoreErr(err)
	}
	return mapStoreErr(a.store.DeleteOwner(ctx, id))
}

// matches

// ListMatches returns matches for the status filter ("" or "all" lists every
// match), enriched with their joined objects and sorted newest first. A
// failed join degrades that match's enrichment, never the whole listing.
func (a *App) ListMatches(ctx context.Context, statusFilter string) ([]domain.Match, error) {
	var status domain.MatchStatus
	if statusFilter != "" && statusFilter != "all" {
		status = domain.MatchStatus(statusFilter)
	}
	matches, err := a.store.ListMatches(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	for i := range matches {
		a.enrich(ctx, &matches[i])
	}
	sortMatchesByTimestampDesc(matches)
	return matches, nil
}

func (a *App) enrich(ctx context.Context, m *domain.Match) {
	found, err := a.store.GetFound(ctx, m.FoundID)
	if err != nil {
		a.logger.Warn("match_join_failed", "match_id", m.ID, "collection", store.CollectionFound, "doc_id", m.FoundID, "error", err)
	} else {
		m.FoundObjectData = &found
	}
	lost, err := a.store.GetLost(ctx, m.LostID)
	if err != nil {
		a.logger.Warn("match_join_failed", "match_id", m.ID, "collection", store.CollectionLost, "doc_id", m.LostID, "error", err)
		return
	}
	m.LostObjectData = &lost
	if lost.OwnerID == "" {
		return
	}
	owner, err := a.store.GetOwner(ctx, lost.OwnerID)
	if err != nil {
		a.logger.Warn("match_join_failed", "match_id", m.ID, "collection", store.CollectionOwners, "doc_id", lost.OwnerID, "error", err)
		return
	}
	m.OwnerEmail = owner.Email
}

func sortMatchesByTimestampDesc(matches []domain.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})
}

// SetMatchStatus applies the pending-only transition rule.
func (a *App) SetMatchStatus(ctx context.Context, id string, status string) error {
	to := domain.MatchStatus(status)
	if to != domain.MatchStatusAccepted && to != domain.MatchStatusRejected {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	match, err := a.store.GetMatch(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}
	if !domain.MatchStatusTransitionAllowed(match.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, match.Status, to)
	}
	return mapStoreErr(a.store.UpdateMatchStatus(ctx, id, to))
}

func (a *App) DeleteMatch(ctx context.Context, id string) error {
	if _, err := a.store.GetMatch(ctx, id); err != nil {
		return mapStoreErr(err)
	}
	return mapStoreErr(a.store.DeleteMatch(ctx, id))
}

// search

// SearchHit is one record in the universal search response, carrying both
// the raw record and its display-ready fields.
type SearchHit struct {
	ID      string                 `json:"id"`
	Record  any                    `json:"record"`
	Display []records.DisplayField `json:"display"`
}

// SearchResults groups universal search hits per collection.
type SearchResults struct {
	FoundObjects []SearchHit `json:"foundObjects"`
	LostObjects  []SearchHit `json:"lostObjects"`
	Owners       []SearchHit `json:"owners"`
	Matches      []SearchHit `json:"matches"`
}

// Search runs a case-insensitive substring search over all four collections.
func (a *App) Search(ctx context.Context, term string) (SearchResults, error) {
	if len(term) == 0 {
		return SearchResults{}, ErrEmptyQuery
	}
	var results SearchResults
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		objs, err := a.store.ListFound(ctx)
		if err != nil {
			return fmt.Errorf("search found objects: %w", err)
		}
		for _, obj := range searchFoundObjects(objs, term) {
			results.FoundObjects = append(results.FoundObjects, SearchHit{
				ID: obj.ID, Record: obj, Display: records.DisplayFields("found", records.AsMap(obj)),
			})
		}
		return nil
	})
	g.Go(func() error {
		objs, err := a.store.ListLost(ctx)
		if err != nil {
			return fmt.Errorf("search lost objects: %w", err)
		}
		for _, obj := range records.SearchLost(objs, term) {
			results.LostObjects = append(results.LostObjects, SearchHit{
				ID: obj.ID, Record: obj, Display: records.DisplayFields("lost", records.AsMap(obj)),
			})
		}
		return nil
	})
	g.Go(func() error {
		owners, err := a.store.ListOwners(ctx)
		if err != nil {
			return fmt.Errorf("search owners: %w", err)
		}
		for _, owner := range records.SearchOwners(owners, term) {
			results.Owners = append(results.Owners, SearchHit{
				ID: owner.ID, Record: owner, Display: records.DisplayFields("owners", records.AsMap(owner)),
			})
		}
		return nil
	})
	g.Go(func() error {
		matches, err := a.store.ListMatches(ctx, "")
		if err != nil {
			return fmt.Errorf("search matches: %w", err)
		}
		for _, m := range records.SearchMatches(matches, term) {
			results.Matches = append(results.Matches, SearchHit{
				ID: m.ID, Record: m, Display: records.DisplayFields("matches", records.AsMap(m)),
			})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return SearchResults{}, err
	}
	return results, nil
}

// searchFoundObjects treats a term that parses as a found reference code as an
// exact lookup, since codes are unique. Anything else falls through to the
// substring scan.
func searchFoundObjects(objs []domain.FoundObject, term string) []domain.FoundObject {
	code := strings.ToUpper(strings.TrimSpace(term))
	if prefix, _, err := refcode.Parse(code); err == nil && prefix == refcode.FoundPrefix {
		for _, obj := range objs {
			if obj.Ref == code {
				return []domain.FoundObject{obj}
			}
		}
		return nil
	}
	return records.SearchFound(objs, term)
}

// stats

// Stats is the full dashboard statistics payload.
type Stats struct {
	Overview  stats.Overview        `json:"overview"`
	KPIs      stats.KPIs            `json:"kpis"`
	Daily     []stats.DayCount      `json:"daily"`
	Types     []stats.TypeCount     `json:"types"`
	Locations []stats.LocationCount `json:"locations"`
	Statuses  []stats.StatusCount   `json:"statuses"`
}

// Stats fetches the collections concurrently and derives every KPI and
// chart series in one pass.
func (a *App) Stats(ctx context.Context, days int) (Stats, error) {
	if days <= 0 {
		days = 30
	}
	var (
		found    []domain.FoundObject
		lost     []domain.LostObject
		owners   []domain.Owner
		accepted []domain.Match
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		found, err = a.store.ListFound(gctx)
		return err
	})
	g.Go(func() (err error) {
		lost, err = a.store.ListLost(gctx)
		return err
	})
	g.Go(func() (err error) {
		owners, err = a.store.ListOwners(gctx)
		return err
	})
	g.Go(func() (err error) {
		accepted, err = a.store.ListMatches(gctx, domain.MatchStatusAccepted)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("load stats collections: %w", err)
	}

	now := a.now()
	return Stats{
		Overview:  stats.NewOverview(len(found), len(lost), len(owners), len(accepted)),
		KPIs:      stats.ComputeKPIs(found, lost, accepted, now),
		Daily:     stats.DailySeries(found, lost, accepted, days, now),
		Types:     stats.TopTypes(found, lost),
		Locations: stats.TopLocations(found),
		Statuses:  stats.StatusBreakdown(len(found), len(lost), len(accepted)),
	}, nil
}

// views

// Archived lists found objects created more than the archive window ago.
func (a *App) Archived(ctx context.Context) ([]domain.FoundObject, error) {
	cutoff := a.now().Add(-a.archiveAfter)
	objs, err := a.store.ListArchivedFound(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list archived: %w", err)
	}
	return objs, nil
}

// NonDeposited lists found objects that never reached a pickup counter.
func (a *App) NonDeposited(ctx context.Context) ([]domain.FoundObject, error) {
	objs, err := a.store.ListNonDepositedFound(ctx)
	if err != nil {
		return nil, fmt.Errorf("list non-deposited: %w", err)
	}
	return objs, nil
}

// PendingView is the staging collection plus its readiness summary.
type PendingView struct {
	Items      []domain.PendingObject `json:"items"`
	Total      int                    `json:"total"`
	ReadyCount int                    `json:"readyCount"`
}

// Pending lists staging records with the ready predicate applied, optionally
// narrowed by a search term.
func (a *App) Pending(ctx context.Context, term string) (PendingView, error) {
	items, err := a.store.ListPending(ctx)
	if err != nil {
		return PendingView{}, fmt.Errorf("list pending: %w", err)
	}
	items = records.SearchPending(items, term)
	view := PendingView{Items: items, Total: len(items)}
	for _, item := range items {
		if item.Ready() {
			view.ReadyCount++
		}
	}
	return view, nil
}

// ProcessPending triggers the matching pipeline's staging sweep.
func (a *App) ProcessPending(ctx context.Context) ([]json.RawMessage, error) {
	if a.pipeline == nil {
		return nil, errors.New("matching pipeline not configured")
	}
	processed, err := a.pipeline.ProcessPending(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("pending_processed", "count", len(processed))
	return processed, nil
}

// session support

// LookupUser resolves the dashboard account for an email address.
func (a *App) LookupUser(ctx context.Context, email string) (domain.User, error) {
	user, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, mapStoreErr(err)
	}
	return user, nil
}
