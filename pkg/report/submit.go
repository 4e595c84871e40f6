// Package report implements the found-object report submission flow shared
// by the dashboard and the public intake service.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"lostfound/internal/refcode"
	"lostfound/pkg/domain"
	"lostfound/pkg/storage"
	"lostfound/pkg/store"
)

// Submission is a found-object report form.
type Submission struct {
	Type           string `json:"type"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	VolID          string `json:"volId"`
	PickupLocation string `json:"pickupLocation"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
}

// Image is an optional uploaded photo of the object.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Result identifies the stored report.
type Result struct {
	DocID string `json:"docId"`
	Ref   string `json:"ref"`
}

// ValidationError reports a rejected form field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s is required", e.Field)
}

// EmbeddingNotifier is the best-effort matching-pipeline hook.
type EmbeddingNotifier interface {
	NotifyEmbedding(docID, description, kind string)
}

// Submitter persists found-object reports.
type Submitter struct {
	store    store.Store
	images   storage.ImageStore
	notifier EmbeddingNotifier
	logger   *slog.Logger
}

// NewSubmitter wires the submission flow. images may be nil when uploads are
// disabled; notifier may be nil when no matching pipeline is configured.
func NewSubmitter(st store.Store, images storage.ImageStore, notifier EmbeddingNotifier, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{store: st, images: images, notifier: notifier, logger: logger}
}

// Validate checks the form. Type, location, flight and pickup location are
// always required; the description only when the type is the free-form
// "Autre" bucket.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Type) == "" {
		return &ValidationError{Field: "type"}
	}
	if strings.TrimSpace(s.Location) == "" {
		return &ValidationError{Field: "location"}
	}
	if strings.TrimSpace(s.VolID) == "" {
		return &ValidationError{Field: "volId"}
	}
	if strings.TrimSpace(s.PickupLocation) == "" {
		return &ValidationError{Field: "pickupLocation"}
	}
	if s.Type == "Autre" && strings.TrimSpace(s.Description) == "" {
		return &ValidationError{Field: "description"}
	}
	return nil
}

// ComposeDescription builds the free-text document description handed to the
// embedding service.
func ComposeDescription(s Submission) string {
	return strings.TrimSpace(fmt.Sprintf(
		"Type: %s.\nLieu de récupération: %s.\nVol n°: %s.\nDescription: %s.",
		s.Type, s.Location, s.VolID, s.Description,
	))
}

// Submit validates the form, uploads the image when present, assigns the next
// reference code and writes the document. The embedding notification runs in
// the background and cannot fail the submission; an image upload failure
// aborts before anything is written.
func (s *Submitter) Submit(ctx context.Context, sub Submission, img *Image) (Result, error) {
	if err := sub.Validate(); err != nil {
		return Result{}, err
	}

	imageURL := ""
	if img != nil && img.Reader != nil {
		if s.images == nil {
			return Result{}, fmt.Errorf("image upload not configured")
		}
		key := storage.NewImageKey(img.Filename)
		if err := s.images.Put(ctx, key, img.Reader, img.Size, img.ContentType); err != nil {
			return Result{}, fmt.Errorf("upload image: %w", err)
		}
		imageURL = s.images.URL(key)
	}

	count, err := s.store.NextRefCount(ctx, store.CollectionFound)
	if err != nil {
		return Result{}, fmt.Errorf("next ref count: %w", err)
	}
	ref := refcode.Format(refcode.FoundPrefix, count)

	docID, err := s.store.CreateFound(ctx, domain.FoundObject{
		Ref:            ref,
		Type:           sub.Type,
		Description:    sub.Description,
		Location:       sub.Location,
		PickupLocation: sub.PickupLocation,
		Email:          sub.Email,
		Phone:          sub.Phone,
		VolID:          sub.VolID,
		Status:         domain.FoundStatusFound,
		Image:          imageURL,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create found object: %w", err)
	}

	s.logger.Info("found_report_created", "doc_id", docID, "ref", ref)

	if s.notifier != nil {
		s.notifier.NotifyEmbedding(docID, ComposeDescription(sub), "found")
	}

	return Result{DocID: docID, Ref: ref}, nil
}
