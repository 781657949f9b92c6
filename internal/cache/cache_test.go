package cache

import (
	"sync"
	"testing"
	"time"

	"ctalara/internal/core"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("least recently used entry should be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("Size() = %d", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute)
	c.now = clock.Now

	c.Set("idle", "x")
	c.Set("active", "y")

	clock.Advance(40 * time.Second)
	if _, ok := c.Get("active"); !ok {
		t.Fatalf("active entry expired too early")
	}

	clock.Advance(40 * time.Second)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired() = %d, want 1", n)
	}
	if _, ok := c.Get("active"); !ok {
		t.Fatalf("reading an entry should extend its life")
	}
	if _, ok := c.Get("idle"); ok {
		t.Fatalf("idle entry should be gone")
	}
}

func TestSessionStoreIsolation(t *testing.T) {
	s := NewSessionStore(10, time.Minute)

	a := core.Selection{Countries: []string{"Polska"}, Views: core.ViewSet{core.ViewRisk: true}}
	s.Save("session-a", a)
	s.Save("session-b", core.Selection{Countries: []string{"Japonia"}})

	a.Countries[0] = "mutated"
	a.Views[core.ViewRisk] = false

	got, ok := s.Load("session-a")
	if !ok || got.Countries[0] != "Polska" || !got.Views.Enabled(core.ViewRisk) {
		t.Fatalf("stored selection changed through caller alias: %+v", got)
	}
	got.Countries[0] = "again"
	again, _ := s.Load("session-a")
	if again.Countries[0] != "Polska" {
		t.Fatalf("Load returned shared state")
	}

	other, _ := s.Load("session-b")
	if other.Countries[0] != "Japonia" {
		t.Fatalf("sessions leaked into each other")
	}

	if _, ok := s.Load(""); ok {
		t.Fatalf("empty id must never match")
	}
	s.Forget("session-b")
	if s.Len() != 1 {
		t.Fatalf("Len() = %d", s.Len())
	}
}

func TestSessionStoreConcurrent(t *testing.T) {
	s := NewSessionStore(100, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			for j := 0; j < 50; j++ {
				s.Save(id, core.Selection{DoseFactor: float64(i)})
				if sel, ok := s.Load(id); !ok || sel.DoseFactor != float64(i) {
					t.Errorf("session %s saw %v", id, sel.DoseFactor)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestManager(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, time.Second)
	c.now = clock.Now
	c.Set("x", 1)

	m := NewManager(nil)
	m.Register(c)
	clock.Advance(2 * time.Second)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("CleanNow() = %d", n)
	}

	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop()
}
