package stub

import "testing"

func TestRegisterAddsNameAndAliases(t *testing.T) {
	r := New()
	r.Register(Def{Name: "malloc", Aliases: []string{"je_malloc"}, Category: "libc"})

	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 (name + alias)", r.Count())
	}
	r.mu.RLock()
	_, hasName := r.stubs["malloc"]
	_, hasAlias := r.stubs["je_malloc"]
	r.mu.RUnlock()
	if !hasName || !hasAlias {
		t.Error("Register should index both the canonical name and every alias")
	}
}

func TestMatchesAny(t *testing.T) {
	cases := []struct {
		name     string
		patterns []string
		want     bool
	}{
		{"malloc", []string{"malloc"}, true},
		{"__libc_malloc", []string{"malloc"}, true},
		{"free", []string{"malloc", "calloc"}, false},
		{"pthread_mutex_lock", []string{"pthread_"}, true},
	}
	for _, c := range cases {
		if got := matchesAny(c.name, c.patterns); got != c.want {
			t.Errorf("matchesAny(%q, %v) = %v, want %v", c.name, c.patterns, got, c.want)
		}
	}
}

func TestCheckDetectorsActivatesOncePerDetector(t *testing.T) {
	r := New()
	calls := 0
	r.RegisterDetector(Detector{
		Name:     "libc",
		Patterns: []string{"malloc"},
		Activate: func(r *Registry) { calls++ },
	})

	r.checkDetectors([]string{"malloc", "free"})
	r.checkDetectors([]string{"malloc"})
	if calls != 1 {
		t.Errorf("Activate called %d times, want 1 (detectors fire once)", calls)
	}
}

func TestCheckDetectorsIgnoresNonMatchingNames(t *testing.T) {
	r := New()
	calls := 0
	r.RegisterDetector(Detector{
		Name:     "pthread",
		Patterns: []string{"pthread_"},
		Activate: func(r *Registry) { calls++ },
	})

	r.checkDetectors([]string{"malloc", "free", "memcpy"})
	if calls != 0 {
		t.Errorf("Activate called %d times, want 0 (no matching name present)", calls)
	}
}
