package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"personastudio/internal/domain"
)

type listStub struct {
	pages   []*domain.GenerationPage
	err     error
	sizes   []int
	cursors []string
}

func (l *listStub) List(_ context.Context, size int, cursor string) (*domain.GenerationPage, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.sizes = append(l.sizes, size)
	l.cursors = append(l.cursors, cursor)
	if len(l.pages) == 0 {
		return &domain.GenerationPage{}, nil
	}
	p := l.pages[0]
	l.pages = l.pages[1:]
	return p, nil
}

type fetchStub struct {
	mu     sync.Mutex
	images map[string][]byte
	calls  int
}

func (f *fetchStub) FetchImage(_ context.Context, ref string) ([]byte, string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	data, ok := f.images[ref]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return data, "image/jpeg", nil
}

func gens(ids ...string) []domain.Generation {
	out := make([]domain.Generation, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Generation{ID: id, ImageURL: "https://cdn/" + id})
	}
	return out
}

func TestCollectFollowsCursorUpToLimit(t *testing.T) {
	l := &listStub{pages: []*domain.GenerationPage{
		{Items: gens("a", "b"), NextCursor: "c1"},
		{Items: gens("c", "d"), NextCursor: "c2"},
		{Items: gens("e")},
	}}
	got, err := Collect(context.Background(), l, 3)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if diff := cmp.Diff([]string{"", "c1"}, l.cursors); diff != "" {
		t.Fatalf("cursors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 1}, l.sizes); diff != "" {
		t.Fatalf("page sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestGallerySkipsFailedDownloads(t *testing.T) {
	l := &listStub{pages: []*domain.GenerationPage{{Items: []domain.Generation{
		{ID: "a", ImageURL: "https://cdn/a", CreatedAt: "2026-01-02T03:04:05Z"},
		{ID: "b", ImageURL: "https://cdn/missing"},
		{ID: "c", ImageURL: "https://cdn/c"},
	}}}}
	f := &fetchStub{images: map[string][]byte{"https://cdn/a": []byte("A"), "https://cdn/c": []byte("C")}}

	res, err := Gallery(context.Background(), l, f, Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("Gallery: %v", err)
	}
	if res.Included != 2 || res.Skipped != 1 {
		t.Fatalf("included/skipped = %d/%d, want 2/1", res.Included, res.Skipped)
	}
	zr, err := zip.NewReader(bytes.NewReader(res.Archive), int64(len(res.Archive)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	var names []string
	for _, file := range zr.File {
		names = append(names, file.Name)
		if file.Name == "a.jpg" && !file.Modified.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
			t.Fatalf("a.jpg modified = %v", file.Modified)
		}
	}
	sort.Strings(names)
	if diff := cmp.Diff([]string{"a.jpg", "c.jpg"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestGalleryEmpty(t *testing.T) {
	if _, err := Gallery(context.Background(), &listStub{}, &fetchStub{}, Options{}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}

	l := &listStub{pages: []*domain.GenerationPage{{Items: gens("x")}}}
	if _, err := Gallery(context.Background(), l, &fetchStub{}, Options{}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("all downloads failed: err = %v, want ErrEmpty", err)
	}

	boom := errors.New("list down")
	if _, err := Gallery(context.Background(), &listStub{err: boom}, &fetchStub{}, Options{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want list error", err)
	}
}

func TestFilename(t *testing.T) {
	got := Filename(time.Date(2026, 3, 14, 23, 0, 0, 0, time.FixedZone("x", -5*3600)))
	if got != "generations-20260315.zip" {
		t.Fatalf("Filename = %q", got)
	}
}
