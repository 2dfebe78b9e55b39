package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"orderhub/pkg/order"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	repo := New()
	if _, err := repo.Submit(ctx, order.Order{Name: "Acme", BusinessID: 12345, Item: order.Sunglasses, Quantity: 5}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := repo.Submit(ctx, order.Order{Name: "Acme", BusinessID: 12345, Item: order.Sunglasses, Quantity: 3}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := repo.Get(ctx, 12345)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Count(order.Sunglasses) != 8 {
		t.Fatalf("expected 8 sunglasses, got %d", got.Count(order.Sunglasses))
	}
	if got.Count(order.Belts) != 0 || got.Count(order.Scarves) != 0 {
		t.Fatalf("unexpected counts: %v", got.Counts)
	}
	if _, err := repo.Get(ctx, 54321); err != order.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryReportsCreation(t *testing.T) {
	ctx := context.Background()
	repo := New()
	created, err := repo.Submit(ctx, order.Order{Name: "Acme", BusinessID: 12345, Item: order.Belts, Quantity: 1})
	if err != nil || !created {
		t.Fatalf("first submit: created=%v err=%v", created, err)
	}
	created, err = repo.Submit(ctx, order.Order{Name: "Acme", BusinessID: 12345, Item: order.Belts, Quantity: 1})
	if err != nil || created {
		t.Fatalf("second submit: created=%v err=%v", created, err)
	}
	created, err = repo.Submit(ctx, order.Order{Name: "Other", BusinessID: 12345, Item: order.Belts, Quantity: 1})
	if err != order.ErrNameMismatch || created {
		t.Fatalf("conflicting submit: created=%v err=%v", created, err)
	}
}

func TestRegistryNameMismatch(t *testing.T) {
	ctx := context.Background()
	repo := New()
	if _, err := repo.Submit(ctx, order.Order{Name: "Acme", BusinessID: 12345, Item: order.Belts, Quantity: 2}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := repo.Submit(ctx, order.Order{Name: "Acmebis", BusinessID: 12345, Item: order.Belts, Quantity: 9})
	if err != order.ErrNameMismatch {
		t.Fatalf("expected ErrNameMismatch, got %v", err)
	}
	// Names compare case-sensitively.
	if _, err := repo.Submit(ctx, order.Order{Name: "acme", BusinessID: 12345, Item: order.Belts, Quantity: 9}); err != order.ErrNameMismatch {
		t.Fatalf("expected ErrNameMismatch, got %v", err)
	}
	got, _ := repo.Get(ctx, 12345)
	if got.Name != "Acme" || got.Count(order.Belts) != 2 {
		t.Fatalf("record changed after conflict: %+v", got)
	}
}

func TestRegistryUnknownItem(t *testing.T) {
	ctx := context.Background()
	repo := New()
	if _, err := repo.Submit(ctx, order.Order{Name: "Acme", BusinessID: 12345, Item: 7, Quantity: 4}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := repo.Get(ctx, 12345)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, it := range order.Items {
		if got.Count(it) != 0 {
			t.Fatalf("expected zero %s, got %d", it, got.Count(it))
		}
	}

	strict := New(WithStrictItems(true))
	if _, err := strict.Submit(ctx, order.Order{Name: "Acme", BusinessID: 12345, Item: 7, Quantity: 4}); err != order.ErrUnknownItem {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if n, _ := strict.Len(ctx); n != 0 {
		t.Fatalf("strict registry created a record: %d", n)
	}
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	repo := New()
	repo.Submit(ctx, order.Order{Name: "Acme", BusinessID: 12345, Item: order.Scarves, Quantity: 1})
	got, _ := repo.Get(ctx, 12345)
	got.Counts[order.Scarves] = 100
	again, _ := repo.Get(ctx, 12345)
	if again.Count(order.Scarves) != 1 {
		t.Fatalf("snapshot leaked internal state: %d", again.Count(order.Scarves))
	}
}

func TestRegistryListOrder(t *testing.T) {
	ctx := context.Background()
	repo := New()
	ids := []int{50000, 10000, 99999, 20000}
	for _, id := range ids {
		repo.Submit(ctx, order.Order{Name: "n", BusinessID: id, Item: order.Belts, Quantity: 1})
	}
	list, err := repo.List(ctx)
	if err != nil || len(list) != len(ids) {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
	for i, c := range list {
		if c.BusinessID != ids[i] {
			t.Fatalf("position %d: expected %d, got %d", i, ids[i], c.BusinessID)
		}
	}
}

func TestRegistryConcurrentDistinctIDs(t *testing.T) {
	ctx := context.Background()
	repo := New()
	const n = 500
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			created, err := repo.Submit(ctx, order.Order{Name: "client", BusinessID: id, Item: order.Scarves, Quantity: id%7 + 1})
			if err == nil && !created {
				err = fmt.Errorf("client %d: expected a new record", id)
			}
			errs <- err
		}(order.MinBusinessID + i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if got, _ := repo.Len(ctx); got != n {
		t.Fatalf("expected %d clients, got %d", n, got)
	}
	for i := 0; i < n; i++ {
		id := order.MinBusinessID + i
		c, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if c.Count(order.Scarves) != id%7+1 {
			t.Fatalf("client %d: expected %d scarves, got %d", id, id%7+1, c.Count(order.Scarves))
		}
	}
}

func TestRegistryConcurrentSameID(t *testing.T) {
	ctx := context.Background()
	repo := New()
	const n = 1000
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Submit(ctx, order.Order{Name: "Acme", BusinessID: 12345, Item: order.Sunglasses, Quantity: 1}); err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()
	got, _ := repo.Get(ctx, 12345)
	if got.Count(order.Sunglasses) != n {
		t.Fatalf("lost updates: expected %d, got %d", n, got.Count(order.Sunglasses))
	}
}

func TestRegistryConcurrentNameRace(t *testing.T) {
	ctx := context.Background()
	repo := New()
	const n = 200
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := map[string]int{}
	for i := 0; i < n; i++ {
		name := "Acme"
		if i%2 == 1 {
			name = "Acmebis"
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := repo.Submit(ctx, order.Order{Name: name, BusinessID: 12345, Item: order.Belts, Quantity: 1}); err == nil {
				mu.Lock()
				accepted[name]++
				mu.Unlock()
			}
		}(name)
	}
	wg.Wait()
	if len(accepted) != 1 {
		t.Fatalf("both names were accepted: %v", accepted)
	}
	got, _ := repo.Get(ctx, 12345)
	if got.Count(order.Belts) != accepted[got.Name] {
		t.Fatalf("count %d does not match %d accepted submissions", got.Count(order.Belts), accepted[got.Name])
	}
}
