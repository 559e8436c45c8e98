package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/record"
)

// stubFetcher serves pages of the given sizes; pages past the end are empty.
type stubFetcher struct {
	sizes     []int
	failPage  int
	requested []int
	perPage   int
}

func (s *stubFetcher) FetchPage(ctx context.Context, page, perPage int) ([]record.Raw, error) {
	s.requested = append(s.requested, page)
	s.perPage = perPage
	if page == s.failPage {
		return nil, errors.New("boom")
	}
	if page > len(s.sizes) {
		return []record.Raw{}, nil
	}
	recs := make([]record.Raw, s.sizes[page-1])
	for i := range recs {
		recs[i] = record.New()
		recs[i].Set("id", fmt.Sprintf("p%d-%d", page, i))
	}
	return recs, nil
}

func TestFetchAll_StopsOnEmptyPage(t *testing.T) {
	stub := &stubFetcher{sizes: []int{50, 50, 50, 0}}
	f := NewFetcher(stub, DefaultConfig(), zerolog.Nop())

	res, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(res.Records) != 150 {
		t.Errorf("Records = %d, want 150", len(res.Records))
	}
	if res.Pages != 3 {
		t.Errorf("Pages = %d, want 3", res.Pages)
	}
	if res.Truncated {
		t.Error("Truncated should be false")
	}
	if want := []int{1, 2, 3, 4}; fmt.Sprint(stub.requested) != fmt.Sprint(want) {
		t.Errorf("Requested pages = %v, want %v", stub.requested, want)
	}
	if stub.perPage != 50 {
		t.Errorf("perPage = %d, want 50", stub.perPage)
	}
	if res.Records[0].ID() != "p1-0" || res.Records[149].ID() != "p3-49" {
		t.Errorf("Records out of order: first %s, last %s", res.Records[0].ID(), res.Records[149].ID())
	}
}

func TestFetchAll_EmptyListing(t *testing.T) {
	stub := &stubFetcher{}
	res, err := NewFetcher(stub, DefaultConfig(), zerolog.Nop()).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(res.Records) != 0 || res.Pages != 0 {
		t.Errorf("Expected no records, got %d in %d pages", len(res.Records), res.Pages)
	}
}

func TestFetchAll_FailureDiscardsEverything(t *testing.T) {
	stub := &stubFetcher{sizes: []int{10, 10, 10}, failPage: 2}
	res, err := NewFetcher(stub, DefaultConfig(), zerolog.Nop()).FetchAll(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}
	if len(res.Records) != 0 {
		t.Errorf("Expected no partial records, got %d", len(res.Records))
	}
	if len(stub.requested) != 2 {
		t.Errorf("Requested %v, want stop after page 2", stub.requested)
	}
}

func TestFetchAll_MaxPages(t *testing.T) {
	stub := &stubFetcher{sizes: []int{5, 5, 5, 5}}
	cfg := DefaultConfig()
	cfg.MaxPages = 2

	res, err := NewFetcher(stub, cfg, zerolog.Nop()).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(res.Records) != 10 || !res.Truncated {
		t.Errorf("Records = %d truncated = %v, want 10 true", len(res.Records), res.Truncated)
	}
	if len(stub.requested) != 2 {
		t.Errorf("Requested %v, want 2 pages", stub.requested)
	}
}

func TestFetchAll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubFetcher{sizes: []int{5}}
	_, err := NewFetcher(stub, DefaultConfig(), zerolog.Nop()).FetchAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(stub.requested) != 0 {
		t.Errorf("No page should be requested, got %v", stub.requested)
	}
}

func TestNewFetcher_Defaults(t *testing.T) {
	f := NewFetcher(&stubFetcher{}, Config{PerPage: -1, MaxPages: -3}, zerolog.Nop())
	if f.config.PerPage != 50 {
		t.Errorf("PerPage = %d, want 50", f.config.PerPage)
	}
	if f.config.MaxPages != 0 {
		t.Errorf("MaxPages = %d, want 0", f.config.MaxPages)
	}
	if f.config.ProgressEvery != 20 {
		t.Errorf("ProgressEvery = %d, want 20", f.config.ProgressEvery)
	}
}
