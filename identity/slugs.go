package identity

import "fmt"

// SlugSet tracks slugs handed out during one batch. The zero value is not
// usable; call NewSlugSet.
type SlugSet struct {
	used map[string]struct{}
}

func NewSlugSet() *SlugSet {
	return &SlugSet{used: make(map[string]struct{})}
}

// Claim returns base, or base-1, base-2, ... if base was already taken.
func (s *SlugSet) Claim(base string) string {
	slug := base
	for i := 1; ; i++ {
		if _, taken := s.used[slug]; !taken {
			break
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	s.used[slug] = struct{}{}
	return slug
}

func (s *SlugSet) Len() int {
	return len(s.used)
}

// Tracker remembers fingerprints and the row that first produced them.
type Tracker struct {
	seen map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]int)}
}

// Observe records the fingerprint for row and returns the earlier row
// number when it was already seen.
func (t *Tracker) Observe(fingerprint string, row int) (int, bool) {
	if first, ok := t.seen[fingerprint]; ok {
		return first, true
	}
	t.seen[fingerprint] = row
	return 0, false
}
