package pipeline

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// NameSet accumulates package names in arrival order, dropping repeats.
// Seen names are tracked in a bounded LRU, so a name evicted after maxSize
// newer names may be accepted twice; ResultSet still keeps one record per key.
type NameSet struct {
	seen  *lru.Cache[string, struct{}]
	names []string
	dupes int
}

// NewNameSet builds a NameSet remembering up to maxSize names.
func NewNameSet(maxSize int) (*NameSet, error) {
	seen, err := lru.New[string, struct{}](maxSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &NameSet{seen: seen}, nil
}

// Add appends the names not seen before and returns how many were kept.
func (s *NameSet) Add(names ...string) int {
	added := 0
	for _, name := range names {
		if name == "" {
			continue
		}
		if found, _ := s.seen.ContainsOrAdd(name, struct{}{}); found {
			s.dupes++
			continue
		}
		s.names = append(s.names, name)
		added++
	}
	return added
}

// Names returns the accepted names in order.
func (s *NameSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of accepted names.
func (s *NameSet) Len() int {
	return len(s.names)
}

// Duplicates returns the number of repeated names dropped so far.
func (s *NameSet) Duplicates() int {
	return s.dupes
}
