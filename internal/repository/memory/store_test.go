package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

func TestWithinTxDiscardsFailedWork(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locations.Create(ctx, &domain.Location{ID: "loc-1", HotelID: "hotel-1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.Repositories().Locations.GetByID(ctx, "loc-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("rolled back location still visible: %v", err)
	}
}

func TestWithinTxCommitsAndIsolates(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locations.Create(ctx, &domain.Location{ID: "loc-1", HotelID: "hotel-1", Name: "Lobby"}); err != nil {
			return err
		}
		if _, err := store.Repositories().Locations.GetByID(ctx, "loc-1"); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("uncommitted location leaked: %v", err)
		}
		loc, err := repos.Locations.GetByID(ctx, "loc-1")
		if err != nil {
			return err
		}
		loc.Name = "Main Lobby"
		return repos.Locations.Update(ctx, loc)
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	loc, err := store.Repositories().Locations.GetByID(ctx, "loc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loc.Name != "Main Lobby" {
		t.Errorf("expected committed name, got %q", loc.Name)
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()
	repos := store.Repositories()

	if err := repos.Locations.Create(ctx, &domain.Location{ID: "loc-1", Name: "Lobby"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	loc, _ := repos.Locations.GetByID(ctx, "loc-1")
	loc.Name = "changed"

	again, _ := repos.Locations.GetByID(ctx, "loc-1")
	if again.Name != "Lobby" {
		t.Errorf("mutation through returned pointer reached the store: %q", again.Name)
	}
	if err := repos.Locations.Create(ctx, &domain.Location{ID: "loc-1"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestWithinTxSerializesWriters(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()
	if err := store.Repositories().Locations.Create(ctx, &domain.Location{ID: "loc-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
				loc, err := repos.Locations.GetByID(ctx, "loc-1")
				if err != nil {
					return err
				}
				loc.Address += "x"
				return repos.Locations.Update(ctx, loc)
			})
		}()
	}
	wg.Wait()

	loc, _ := store.Repositories().Locations.GetByID(ctx, "loc-1")
	if len(loc.Address) != writers {
		t.Errorf("expected %d serialized increments, got %d", writers, len(loc.Address))
	}
}
