package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"lostfound/pkg/store"
)

type recordedNotify struct {
	DocID       string
	Description string
	Kind        string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []recordedNotify
}

func (f *fakeNotifier) NotifyEmbedding(docID, description, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedNotify{docID, description, kind})
}

func (f *fakeNotifier) snapshot() []recordedNotify {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedNotify(nil), f.calls...)
}

type fakeImages struct {
	fail bool
	keys []string
}

func (f *fakeImages) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	if f.fail {
		return errors.New("storage unavailable")
	}
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeImages) URL(key string) string {
	return "https://cdn.example.com/lostfound/" + key
}

func (f *fakeImages) DeleteByURL(context.Context, string) error { return nil }

func (f *fakeImages) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validSubmission() Submission {
	return Submission{
		Type:           "Téléphone",
		Location:       "Terminal 1",
		VolID:          "AT123",
		PickupLocation: "Comptoir A",
	}
}

func TestSubmitWithoutImage(t *testing.T) {
	st := store.NewMemoryStore()
	notifier := &fakeNotifier{}
	sub := NewSubmitter(st, nil, notifier, discard())

	result, err := sub.Submit(context.Background(), validSubmission(), nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !regexp.MustCompile(`^FND\d{4}$`).MatchString(result.Ref) {
		t.Fatalf("ref = %q", result.Ref)
	}

	obj, err := st.GetFound(context.Background(), result.DocID)
	if err != nil {
		t.Fatalf("get found: %v", err)
	}
	if obj.Status != "found" {
		t.Fatalf("status = %q", obj.Status)
	}
	if obj.Image != "" {
		t.Fatalf("image should be empty, got %q", obj.Image)
	}
	if obj.UpdatedAt != nil {
		t.Fatal("updatedAt must be unset at creation")
	}

	calls := notifier.snapshot()
	if len(calls) != 1 {
		t.Fatalf("notify calls = %d", len(calls))
	}
	if calls[0].Kind != "found" || calls[0].DocID != result.DocID {
		t.Fatalf("notify = %+v", calls[0])
	}
	if !strings.Contains(calls[0].Description, "Vol n°: AT123.") {
		t.Fatalf("composed description = %q", calls[0].Description)
	}
}

func TestSubmitUploadsImageFirst(t *testing.T) {
	st := store.NewMemoryStore()
	images := &fakeImages{}
	sub := NewSubmitter(st, images, &fakeNotifier{}, discard())

	result, err := sub.Submit(context.Background(), validSubmission(), &Image{
		Filename:    "photo.jpg",
		ContentType: "image/jpeg",
		Size:        3,
		Reader:      strings.NewReader("abc"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(images.keys) != 1 {
		t.Fatalf("uploaded keys = %v", images.keys)
	}
	obj, _ := st.GetFound(context.Background(), result.DocID)
	if !strings.HasPrefix(obj.Image, "https://cdn.example.com/lostfound/found_images/") {
		t.Fatalf("image url = %q", obj.Image)
	}
}

func TestSubmitAbortsOnImageFailure(t *testing.T) {
	st := store.NewMemoryStore()
	notifier := &fakeNotifier{}
	sub := NewSubmitter(st, &fakeImages{fail: true}, notifier, discard())

	_, err := sub.Submit(context.Background(), validSubmission(), &Image{
		Filename: "photo.jpg",
		Size:     3,
		Reader:   strings.NewReader("abc"),
	})
	if err == nil {
		t.Fatal("expected upload failure to abort submission")
	}
	if objs, _ := st.ListFound(context.Background()); len(objs) != 0 {
		t.Fatalf("no document should be written, got %d", len(objs))
	}
	if len(notifier.snapshot()) != 0 {
		t.Fatal("no notification should be sent")
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
		field  string
	}{
		{"missing type", func(s *Submission) { s.Type = "" }, "type"},
		{"missing location", func(s *Submission) { s.Location = " " }, "location"},
		{"missing flight", func(s *Submission) { s.VolID = "" }, "volId"},
		{"missing pickup", func(s *Submission) { s.PickupLocation = "" }, "pickupLocation"},
		{"autre needs description", func(s *Submission) { s.Type = "Autre" }, "description"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := validSubmission()
			tc.mutate(&s)
			err := s.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}

	s := validSubmission()
	s.Description = ""
	if err := s.Validate(); err != nil {
		t.Fatalf("description optional for non-Autre types: %v", err)
	}
}

func TestSubmitRefsAreDistinctAndIncreasing(t *testing.T) {
	st := store.NewMemoryStore()
	sub := NewSubmitter(st, nil, nil, discard())

	const n = 20
	refs := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := sub.Submit(context.Background(), validSubmission(), nil)
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			refs <- result.Ref
		}()
	}
	wg.Wait()
	close(refs)

	seen := make(map[string]bool)
	for ref := range refs {
		if seen[ref] {
			t.Fatalf("duplicate ref %s", ref)
		}
		seen[ref] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d unique refs, want %d", len(seen), n)
	}
	for i := 1; i <= n; i++ {
		if !seen[fmt.Sprintf("FND%04d", i)] {
			t.Fatalf("missing ref FND%04d", i)
		}
	}
}
