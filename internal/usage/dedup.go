package usage

// emptyDedupKey is what an entry's ID collapses to when the source
// record carried neither a messageId nor a requestId. Such entries
// cannot be recognized across re-reads and are treated as unique.
const emptyDedupKey = ":"

// DedupStore tracks the identities of entries already accepted into the
// aggregate. It is owned by whichever cycle is currently loading; cycles
// are mutually exclusive, so the store needs no internal locking.
type DedupStore struct {
	seen map[string]struct{}
}

func NewDedupStore() *DedupStore {
	return &DedupStore{seen: make(map[string]struct{})}
}

func (s *DedupStore) Len() int { return len(s.seen) }

func (s *DedupStore) IsDuplicate(e Entry) bool {
	_, ok := s.seen[e.ID]
	return ok
}

func (s *DedupStore) MarkProcessed(e Entry) {
	if e.ID == emptyDedupKey {
		return
	}
	s.seen[e.ID] = struct{}{}
}

// FilterNew returns, in input order, the entries whose ID has not been
// seen before, marking each one seen as it goes so that duplicates
// within the same batch are also dropped.
func (s *DedupStore) FilterNew(entries []Entry) []Entry {
	result := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.ID == emptyDedupKey {
			result = append(result, e)
			continue
		}
		if _, ok := s.seen[e.ID]; ok {
			continue
		}
		s.seen[e.ID] = struct{}{}
		result = append(result, e)
	}
	return result
}

func (s *DedupStore) Reset() {
	s.seen = make(map[string]struct{})
}
