package auth

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRevocationSet_AddContains(t *testing.T) {
	s := NewRevocationSet()
	now := time.Now()

	if s.Contains("jti-1") {
		t.Error("empty set should not contain anything")
	}

	s.Add("jti-1", now.Add(time.Hour), now)

	if !s.Contains("jti-1") {
		t.Error("added JTI should be present")
	}
	if s.Contains("jti-2") {
		t.Error("unrelated JTI should be absent")
	}
	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestRevocationSet_Prune(t *testing.T) {
	s := NewRevocationSet()
	now := time.Now()

	for i := 0; i < 50; i++ {
		exp := now.Add(time.Hour)
		if i%2 == 0 {
			exp = now.Add(-time.Minute) // already lapsed
		}
		s.Add(fmt.Sprintf("jti-%d", i), exp, now)
	}

	removed := s.Prune(now)

	// Add prunes opportunistically, so some lapsed entries may already be
	// gone; what matters is that none survive and live entries all do.
	if remaining := s.Len(); remaining != 25 {
		t.Errorf("Len() after prune = %d (removed %d), want 25", remaining, removed)
	}
	for i := 1; i < 50; i += 2 {
		if !s.Contains(fmt.Sprintf("jti-%d", i)) {
			t.Errorf("live entry jti-%d was pruned", i)
		}
	}
}

func TestRevocationSet_Concurrent(t *testing.T) {
	s := NewRevocationSet()
	now := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				jti := fmt.Sprintf("jti-%d-%d", w, i)
				s.Add(jti, now.Add(time.Hour), now)
				if !s.Contains(jti) {
					t.Errorf("JTI %s missing after Add", jti)
				}
			}
		}(w)
	}
	wg.Wait()

	if got := s.Len(); got != 1000 {
		t.Errorf("Len() = %d, want 1000", got)
	}
}
