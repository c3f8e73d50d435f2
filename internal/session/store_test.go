package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAppendAndRecentChronological(t *testing.T) {
	s := NewStore(20)
	for i := 0; i < 5; i++ {
		s.Append("k1", Turn{Role: RoleUser, Content: fmt.Sprintf("msg-%d", i)})
	}

	got := s.Recent("k1", 3)
	if len(got) != 3 {
		t.Fatalf("Recent() returned %d turns, want 3", len(got))
	}
	for i, want := range []string{"msg-2", "msg-3", "msg-4"} {
		if got[i].Content != want {
			t.Fatalf("turn %d = %q, want %q", i, got[i].Content, want)
		}
	}
}

func TestHistoryCapEvictsOldestFirst(t *testing.T) {
	s := NewStore(4)
	for i := 0; i < 10; i++ {
		s.Append("k1", Turn{Role: RoleUser, Content: fmt.Sprintf("msg-%d", i)})
	}

	got := s.Recent("k1", 0)
	if len(got) != 4 {
		t.Fatalf("history length = %d, want 4", len(got))
	}
	if got[0].Content != "msg-6" || got[3].Content != "msg-9" {
		t.Fatalf("unexpected window: first=%q last=%q", got[0].Content, got[3].Content)
	}
}

func TestRecentNeverExceedsCap(t *testing.T) {
	s := NewStore(4)
	for i := 0; i < 10; i++ {
		s.Append("k1", Turn{Role: RoleUser, Content: "x"})
	}
	if got := s.Recent("k1", 100); len(got) != 4 {
		t.Fatalf("Recent(100) = %d turns, want 4", len(got))
	}
}

func TestRecentMissingSession(t *testing.T) {
	s := NewStore(20)
	if got := s.Recent("nope", 5); len(got) != 0 {
		t.Fatalf("Recent() on missing session = %d turns, want 0", len(got))
	}
}

func TestConcurrentAppendsDoNotCrossContaminate(t *testing.T) {
	s := NewStore(200)
	const perKey = 100

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := 0; i < perKey; i++ {
				s.Append(key, Turn{Role: RoleUser, Content: fmt.Sprintf("%s-%d", key, i)})
			}
		}(key)
	}
	wg.Wait()

	for _, key := range []string{"a", "b"} {
		got := s.Recent(key, 0)
		if len(got) != perKey {
			t.Fatalf("session %q has %d turns, want %d", key, len(got), perKey)
		}
		for i, turn := range got {
			want := fmt.Sprintf("%s-%d", key, i)
			if turn.Content != want {
				t.Fatalf("session %q turn %d = %q, want %q", key, i, turn.Content, want)
			}
		}
	}
}

func TestConcurrentAppendsSameKeyKeepCount(t *testing.T) {
	s := NewStore(1000)
	const writers, each = 8, 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				s.Append("shared", Turn{Role: RoleUser, Content: "x"})
			}
		}()
	}
	wg.Wait()

	if got := len(s.Recent("shared", 0)); got != writers*each {
		t.Fatalf("shared session has %d turns, want %d", got, writers*each)
	}
}

func TestExpireIdleRemovesOnlyStaleSessions(t *testing.T) {
	s := NewStore(20)
	s.Append("stale", Turn{Role: RoleUser, Content: "old"})

	time.Sleep(30 * time.Millisecond)
	s.Append("fresh", Turn{Role: RoleUser, Content: "new"})

	removed := s.ExpireIdle(20 * time.Millisecond)
	if removed != 1 {
		t.Fatalf("ExpireIdle() removed %d, want 1", removed)
	}
	if got := s.Recent("stale", 0); len(got) != 0 {
		t.Fatalf("stale session survived the sweep")
	}
	if got := s.Recent("fresh", 0); len(got) != 1 {
		t.Fatalf("fresh session was swept")
	}
}

func TestClear(t *testing.T) {
	s := NewStore(20)
	s.Append("k1", Turn{Role: RoleUser, Content: "x"})
	if err := s.Clear("k1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := s.Clear("k1"); err != ErrNotFound {
		t.Fatalf("Clear() on missing session = %v, want ErrNotFound", err)
	}
}

func TestJanitorSweeps(t *testing.T) {
	s := NewStore(20)
	s.Append("k1", Turn{Role: RoleUser, Content: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx, 10*time.Millisecond, 5*time.Millisecond, nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("janitor did not expire the idle session")
}
