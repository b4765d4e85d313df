package events

import (
	"fmt"
	"slices"
	"sync"

	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

// Selector draws templates without repeats until a matching pool runs dry,
// then starts that pool over.
type Selector struct {
	mu        sync.Mutex
	templates []Template
	used      map[string]bool
	rng       roll.Source
}

// NewSelector returns a selector over templates. used restores a previously
// saved used-set and may be nil.
func NewSelector(templates []Template, rng roll.Source, used []string) *Selector {
	s := &Selector{
		templates: templates,
		used:      make(map[string]bool, len(used)),
		rng:       rng,
	}
	for _, id := range used {
		s.used[id] = true
	}
	return s
}

// GetRandomTemplate returns an unused template for type t and difficulty d.
// If no template matches the difficulty, any template of type t is used. It
// errors only when no template of type t exists.
func (s *Selector) GetRandomTemplate(t Type, d Difficulty) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool := s.matching(func(tpl Template) bool { return tpl.Type == t && tpl.Difficulty == d })
	if len(pool) == 0 {
		pool = s.matching(func(tpl Template) bool { return tpl.Type == t })
	}
	if len(pool) == 0 {
		return Template{}, fmt.Errorf("no %s templates defined", t)
	}

	unused := make([]Template, 0, len(pool))
	for _, tpl := range pool {
		if !s.used[tpl.ID] {
			unused = append(unused, tpl)
		}
	}
	if len(unused) == 0 {
		for _, tpl := range pool {
			delete(s.used, tpl.ID)
		}
		unused = pool
	}

	pick := unused[roll.Intn(s.rng, len(unused))]
	s.used[pick.ID] = true
	return pick, nil
}

// Used returns the ids drawn since each pool was last reset, sorted.
func (s *Selector) Used() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.used))
	for id := range s.used {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Selector) matching(keep func(Template) bool) []Template {
	var out []Template
	for _, tpl := range s.templates {
		if keep(tpl) {
			out = append(out, tpl)
		}
	}
	return out
}
