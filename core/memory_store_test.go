package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryCredentialStoreCopiesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	subject := SubjectAttrs(map[string]any{"user": "u-1"})

	data := StoredData{"access_token": "a", "team": map[string]any{"id": "T1"}}
	if err := store.Set(ctx, ServiceSlack, subject, data); err != nil {
		t.Fatalf("set: %v", err)
	}
	data["team"].(map[string]any)["id"] = "mutated"

	got, err := store.Get(ctx, ServiceSlack, SubjectAttrs(map[string]any{"user": "u-1"}))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["team"].(map[string]any)["id"] != "T1" {
		t.Fatalf("store must deep copy on set, got %v", got)
	}
	got["access_token"] = "changed"
	again, _ := store.Get(ctx, ServiceSlack, subject)
	if again["access_token"] != "a" {
		t.Fatalf("store must deep copy on get")
	}

	if store.Len(ServiceSlack) != 1 || len(store.Services()) != 1 {
		t.Fatalf("unexpected bookkeeping: len=%d services=%v", store.Len(ServiceSlack), store.Services())
	}
}

func TestMemoryCredentialStoreMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	subject := SubjectID("user-1")

	data, err := store.Get(ctx, ServiceGitHub, subject)
	if err != nil || data != nil {
		t.Fatalf("expected no record, got %v (%v)", data, err)
	}
	if err := store.Delete(ctx, ServiceGitHub, subject); err != nil {
		t.Fatalf("deleting a missing record should be a no-op, got %v", err)
	}

	if err := store.Set(ctx, ServiceGitHub, subject, StoredData{"access_token": "a"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Delete(ctx, ServiceGitHub, subject); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len(ServiceGitHub) != 0 || len(store.Services()) != 0 {
		t.Fatalf("expected empty store after delete")
	}

	if err := store.Set(ctx, ServiceGitHub, SubjectID(" "), StoredData{}); err == nil {
		t.Fatalf("expected blank subject to fail")
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.Get(canceled, ServiceGitHub, subject); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestMemoryCredentialStoreConcurrentAccessKeepsRecordsWhole(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	shared := SubjectID("shared")

	record := func(writer, iter int) StoredData {
		tag := fmt.Sprintf("%d-%d", writer, iter)
		return StoredData{
			"access_token":  "at-" + tag,
			"refresh_token": "rt-" + tag,
			"meta":          map[string]any{"tag": tag, "scope": []any{"read", tag}},
		}
	}
	// whole reports whether data came from exactly one record call.
	whole := func(data StoredData) bool {
		access, _ := data["access_token"].(string)
		refresh, _ := data["refresh_token"].(string)
		meta, _ := data["meta"].(map[string]any)
		tag, _ := meta["tag"].(string)
		scope, _ := meta["scope"].([]any)
		return tag != "" &&
			access == "at-"+tag &&
			refresh == "rt-"+tag &&
			len(scope) == 2 && scope[1] == tag
	}

	const writers, iterations = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		own := SubjectID(fmt.Sprintf("writer-%d", w))
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if err := store.Set(ctx, ServiceGitHub, shared, record(w, i)); err != nil {
					t.Errorf("set shared: %v", err)
					return
				}
				if err := store.Set(ctx, ServiceGitHub, own, record(w, i)); err != nil {
					t.Errorf("set own: %v", err)
					return
				}
				got, err := store.Get(ctx, ServiceGitHub, shared)
				if err != nil {
					t.Errorf("get shared: %v", err)
					return
				}
				if got != nil && !whole(got) {
					t.Errorf("partial record for shared key: %#v", got)
					return
				}
				if i%10 == 0 {
					if err := store.Delete(ctx, ServiceGitHub, shared); err != nil {
						t.Errorf("delete shared: %v", err)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < writers; w++ {
		got, err := store.Get(ctx, ServiceGitHub, SubjectID(fmt.Sprintf("writer-%d", w)))
		if err != nil {
			t.Fatalf("get writer %d: %v", w, err)
		}
		if !whole(got) || got["access_token"] != fmt.Sprintf("at-%d-%d", w, iterations-1) {
			t.Fatalf("expected the last write of writer %d, got %#v", w, got)
		}
	}
}
