package rocmver

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// fakeIndex is a scripted IndexClient for resolver tests.
type fakeIndex struct {
	series      map[string]bool
	seriesErr   error
	latest      Version
	latestErr   error
	listed      []Version
	listErr     error
	seriesCalls int
	latestCalls int
	listCalls   int
}

func (f *fakeIndex) SeriesExists(_ context.Context, series string) (bool, error) {
	f.seriesCalls++
	if f.seriesErr != nil {
		return false, f.seriesErr
	}
	return f.series[series], nil
}

func (f *fakeIndex) LatestAlias(_ context.Context) (Version, error) {
	f.latestCalls++
	if f.latestErr != nil {
		return Version{}, f.latestErr
	}
	return f.latest, nil
}

func (f *fakeIndex) ListVersions(_ context.Context) ([]Version, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listed, nil
}

func testSpec(requested Request, explicit string) Spec {
	return Spec{
		Requested:       requested,
		Explicit:        explicit,
		Minimum:         "6.4",
		Default:         "6.4.3",
		PreferredLatest: "7.0",
	}
}

func TestResolveExplicitPinDominates(t *testing.T) {
	// The index would resolve "latest" to 7.1; an explicit pin of 7.0 must
	// win without any remote query.
	index := &fakeIndex{latest: MustParse("7.1.0")}
	r := NewResolver(index, zerolog.Nop())

	resolved, err := r.Resolve(context.Background(), testSpec(RequestExplicit, "7.0"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved.Series != "7.0" {
		t.Errorf("Series = %q, want %q", resolved.Series, "7.0")
	}
	if resolved.FallbackUsed {
		t.Error("FallbackUsed = true for an honored explicit pin")
	}
	if index.seriesCalls+index.latestCalls+index.listCalls != 0 {
		t.Error("explicit pin must not query the index")
	}
}

func TestResolveDefault(t *testing.T) {
	r := NewResolver(&fakeIndex{}, zerolog.Nop())

	resolved, err := r.Resolve(context.Background(), testSpec(RequestDefault, ""))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Version != MustParse("6.4.3") {
		t.Errorf("Version = %v, want 6.4.3", resolved.Version)
	}
	if resolved.FallbackUsed {
		t.Error("FallbackUsed = true for the default path")
	}
}

func TestResolveBelowFloorSubstitutesDefault(t *testing.T) {
	// Scenario from the reconciliation contract: minimum 6.4, requested 6.0.
	// The resolver must substitute the default and still satisfy the floor.
	r := NewResolver(&fakeIndex{}, zerolog.Nop())

	resolved, err := r.Resolve(context.Background(), testSpec(RequestExplicit, "6.0"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved.Version != MustParse("6.4.3") {
		t.Errorf("Version = %v, want default 6.4.3", resolved.Version)
	}
	if !resolved.FallbackUsed {
		t.Error("FallbackUsed = false after a below-floor substitution")
	}
	if min := MustParse("6.4"); !resolved.Version.SeriesVersion().AtLeast(min) {
		t.Errorf("resolved series %s violates minimum 6.4", resolved.Series)
	}
}

func TestResolveLatestFallbackOrdering(t *testing.T) {
	tests := []struct {
		name         string
		index        *fakeIndex
		want         Version
		wantFallback bool
	}{
		{
			name:  "preferred series available",
			index: &fakeIndex{series: map[string]bool{"7.0": true}, latest: MustParse("7.1.0")},
			want:  MustParse("7.0.0"),
		},
		{
			name:  "preferred absent, alias resolves",
			index: &fakeIndex{series: map[string]bool{}, latest: MustParse("6.9.1")},
			want:  MustParse("6.9.1"),
		},
		{
			name: "preferred probe errors, alias resolves",
			index: &fakeIndex{
				seriesErr: errors.New("connection refused"),
				latest:    MustParse("6.9.1"),
			},
			want: MustParse("6.9.1"),
		},
		{
			name: "alias fails, scrape picks highest",
			index: &fakeIndex{
				series:    map[string]bool{},
				latestErr: errors.New("404"),
				listed:    []Version{MustParse("6.4.3"), MustParse("6.10.0"), MustParse("6.9.2")},
			},
			want: MustParse("6.10.0"),
		},
		{
			name: "every remote path fails, default substituted",
			index: &fakeIndex{
				seriesErr: errors.New("timeout"),
				latestErr: errors.New("timeout"),
				listErr:   errors.New("timeout"),
			},
			want:         MustParse("6.4.3"),
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.index, zerolog.Nop())

			resolved, err := r.Resolve(context.Background(), testSpec(RequestLatest, ""))
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if resolved.Version != tt.want {
				t.Errorf("Version = %v, want %v", resolved.Version, tt.want)
			}
			if resolved.FallbackUsed != tt.wantFallback {
				t.Errorf("FallbackUsed = %v, want %v", resolved.FallbackUsed, tt.wantFallback)
			}
		})
	}
}

func TestResolveFloorHoldsWhenRemotesFail(t *testing.T) {
	// Floor invariant: even with every remote query failing, the resolved
	// series never drops below the minimum.
	index := &fakeIndex{
		seriesErr: errors.New("unreachable"),
		latestErr: errors.New("unreachable"),
		listErr:   errors.New("unreachable"),
	}
	r := NewResolver(index, zerolog.Nop())

	for _, spec := range []Spec{
		testSpec(RequestLatest, ""),
		testSpec(RequestDefault, ""),
		testSpec(RequestExplicit, "5.7"),
	} {
		resolved, err := r.Resolve(context.Background(), spec)
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", spec.Requested, err)
		}
		if min := MustParse("6.4"); !resolved.Version.SeriesVersion().AtLeast(min) {
			t.Errorf("Resolve(%s) = %v, below minimum 6.4", spec.Requested, resolved.Version)
		}
	}
}

func TestResolveBrokenDefaultIsLoud(t *testing.T) {
	// A default below the floor is a configuration bug; the resolver must
	// surface ErrUnresolvable instead of masking it.
	r := NewResolver(&fakeIndex{}, zerolog.Nop())

	spec := Spec{
		Requested: RequestExplicit,
		Explicit:  "6.0",
		Minimum:   "6.4",
		Default:   "6.2.0",
	}

	_, err := r.Resolve(context.Background(), spec)
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("Resolve = %v, want ErrUnresolvable", err)
	}
}
