package media

import (
	"encoding/json"
	"strings"
)

// ReferenceStore maps entity names (characters, locations) to the asset
// generated for them so recurring entities reuse one visual. Entries are
// never evicted.
type ReferenceStore struct {
	refs  map[string]AssetRef
	names map[string]string
	order []string
}

// NewReferenceStore returns an empty store.
func NewReferenceStore() *ReferenceStore {
	return &ReferenceStore{
		refs:  make(map[string]AssetRef),
		names: make(map[string]string),
	}
}

func referenceKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Get returns the stored reference for name.
func (s *ReferenceStore) Get(name string) (AssetRef, bool) {
	ref, ok := s.refs[referenceKey(name)]
	return ref, ok
}

// Put stores ref under name, replacing any earlier reference. Empty names
// and refs are ignored.
func (s *ReferenceStore) Put(name string, ref AssetRef) {
	key := referenceKey(name)
	if key == "" || ref == "" {
		return
	}
	if _, exists := s.refs[key]; !exists {
		s.order = append(s.order, key)
		s.names[key] = strings.TrimSpace(name)
	}
	s.refs[key] = ref
}

// Names lists stored entity names in insertion order.
func (s *ReferenceStore) Names() []string {
	out := make([]string, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.names[key])
	}
	return out
}

// Len returns the number of stored references.
func (s *ReferenceStore) Len() int {
	return len(s.refs)
}

// Snapshot copies the store into a plain map keyed by display name.
func (s *ReferenceStore) Snapshot() map[string]AssetRef {
	out := make(map[string]AssetRef, len(s.refs))
	for _, key := range s.order {
		out[s.names[key]] = s.refs[key]
	}
	return out
}

func (s *ReferenceStore) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
