package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/rocmdev/rocmdev/pkg/config"
	"github.com/rocmdev/rocmdev/pkg/probe"
	"github.com/rocmdev/rocmdev/pkg/rocmver"
)

type fakeUserQuerier struct {
	user  *probe.ContainerUser
	err   error
	calls []string
}

func (f *fakeUserQuerier) ContainerUserAt(ctx context.Context, image string, uid int) (*probe.ContainerUser, error) {
	f.calls = append(f.calls, image)
	return f.user, f.err
}

func testFacts(dockerPresent bool) *probe.Facts {
	return &probe.Facts{
		Identity: probe.HostIdentity{UID: 1000, GID: 1000, Username: "dev"},
		Commands: map[string]bool{"docker": dockerPresent},
	}
}

func TestLookupContainerUser(t *testing.T) {
	cfg := config.Default()
	version := rocmver.MustParse("6.4.3")

	t.Run("docker absent skips the image query", func(t *testing.T) {
		querier := &fakeUserQuerier{}
		got := lookupContainerUser(context.Background(), querier, cfg, testFacts(false), version)
		if got != nil {
			t.Errorf("lookupContainerUser() = %+v, want nil", got)
		}
		if len(querier.calls) != 0 {
			t.Errorf("image queried despite docker being absent: %v", querier.calls)
		}
	})

	t.Run("query failure degrades to a fresh identity", func(t *testing.T) {
		querier := &fakeUserQuerier{err: errors.New("image pull denied")}
		got := lookupContainerUser(context.Background(), querier, cfg, testFacts(true), version)
		if got != nil {
			t.Errorf("lookupContainerUser() = %+v, want nil", got)
		}
	})

	t.Run("existing user at the host uid is reused", func(t *testing.T) {
		querier := &fakeUserQuerier{user: &probe.ContainerUser{Name: "jenkins", UID: 1000, GID: 1000}}
		got := lookupContainerUser(context.Background(), querier, cfg, testFacts(true), version)
		if got == nil || got.Name != "jenkins" {
			t.Fatalf("lookupContainerUser() = %+v, want the jenkins user", got)
		}
		if want := "rocm/pytorch:6.4"; len(querier.calls) != 1 || querier.calls[0] != want {
			t.Errorf("queried images %v, want exactly one query against %q", querier.calls, want)
		}
	})
}
