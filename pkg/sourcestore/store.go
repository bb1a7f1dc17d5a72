/*
Package sourcestore holds the transient, kind-specific selection of a preparation.

Each datasource kind owns a disjoint set of fields. ClearKind resets exactly one
kind's fields to their empty defaults and never touches another kind's fields.
All writes are idempotent.
*/
package sourcestore

import (
	"sync"

	"github.com/aretw0/pipeprep/pkg/domain"
)

// Store holds a domain.SourceState behind a mutex.
// Reads return copies so callers cannot mutate the store by reference.
type Store struct {
	mu    sync.RWMutex
	state domain.SourceState
}

// New creates an empty store.
func New() *Store {
	return &Store{state: domain.NewSourceState()}
}

// Snapshot returns a deep copy of the current selection.
func (s *Store) Snapshot() domain.SourceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Restore replaces the whole selection, typically from a persisted session.
func (s *Store) Restore(state domain.SourceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
}

// Update applies fn to the selection under the write lock.
func (s *Store) Update(fn func(*domain.SourceState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// ClearKind resets the fields owned by kind. Unknown kinds are a no-op.
func (s *Store) ClearKind(kind domain.DatasourceKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clearKind(&s.state, kind)
}

// ClearKindLocked is ClearKind for callers already inside Update.
func ClearKindLocked(state *domain.SourceState, kind domain.DatasourceKind) {
	clearKind(state, kind)
}

func clearKind(st *domain.SourceState, kind domain.DatasourceKind) {
	switch kind {
	case domain.KindLocalFile:
		st.LocalFiles = nil
	case domain.KindOnlineDocument:
		st.DocumentsData = nil
		st.SearchValue = ""
		st.SelectedPagesID = nil
		st.OnlineDocuments = nil
		st.CurrentDocument = nil
	case domain.KindWebsiteCrawl:
		st.CrawlStep = domain.CrawlStepInit
		st.CrawlResult = nil
		st.CurrentWebsite = nil
		st.WebsitePages = nil
		st.PreviewIndex = -1
	case domain.KindOnlineDrive:
		st.OnlineDriveFiles = nil
		st.Bucket = ""
		st.Prefix = nil
		st.Keywords = ""
		st.SelectedFileIDs = nil
	}
}

// Ready reports whether the selection for kind is sufficient to leave the first step.
// Unknown kinds are always ready.
func (s *Store) Ready(kind domain.DatasourceKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Ready(s.state, kind)
}

// Ready is the readiness predicate over a selection value.
func Ready(st domain.SourceState, kind domain.DatasourceKind) bool {
	switch kind {
	case domain.KindLocalFile:
		if len(st.LocalFiles) == 0 {
			return false
		}
		for _, f := range st.LocalFiles {
			if f.File.ID == "" {
				return false
			}
		}
		return true
	case domain.KindOnlineDocument:
		return len(st.OnlineDocuments) > 0
	case domain.KindWebsiteCrawl:
		return len(st.WebsitePages) > 0
	case domain.KindOnlineDrive:
		return len(st.SelectedFileIDs) > 0
	default:
		return true
	}
}

// CredentialID returns the current credential id.
func (s *Store) CredentialID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentCredentialID
}

// SetCredential records the credential id.
func (s *Store) SetCredential(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCredentialID = id
}

// CurrentNodeID returns the node id the selection belongs to.
func (s *Store) CurrentNodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentNodeID
}

// SetCurrentNodeID records the node id the selection belongs to.
func (s *Store) SetCurrentNodeID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentNodeID = id
}
