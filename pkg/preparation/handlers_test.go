package preparation

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlers_CoverEveryKnownKind(t *testing.T) {
	for _, kind := range domain.Kinds() {
		h, ok := handlers[kind]
		require.True(t, ok, "missing handler for %s", kind)
		assert.NotNil(t, h.clear)
		assert.NotNil(t, h.ready)
		assert.NotNil(t, h.build)
	}
	assert.Len(t, handlers, len(domain.Kinds()))
}

func TestHandlerFor_Unknown(t *testing.T) {
	h := handlerFor("ftp")
	assert.True(t, h.ready(domain.SourceState{}))
	list := h.build(domain.SourceState{LocalFiles: []domain.LocalFile{{File: domain.FileInfo{ID: "x"}}}})
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestBuild_LocalFile(t *testing.T) {
	st := domain.SourceState{LocalFiles: []domain.LocalFile{
		{File: domain.FileInfo{ID: "f1", Name: "a.pdf", Type: "document", Size: 42, Extension: "pdf", MimeType: "application/pdf"}},
		{File: domain.FileInfo{ID: "f2"}},
	}}
	assert.Equal(t, []map[string]any{{
		"related_id":      "f1",
		"name":            "a.pdf",
		"type":            "document",
		"size":            int64(42),
		"extension":       "pdf",
		"mime_type":       "application/pdf",
		"url":             "",
		"transfer_method": "local_file",
	}}, buildLocalFile(st))
}

func TestBuild_OnlineDocument(t *testing.T) {
	st := domain.SourceState{
		CurrentCredentialID: "cred",
		OnlineDocuments: []domain.OnlineDocumentPage{
			{"workspace_id": "w1", "page_id": "p1", "title": "Roadmap", "type": "page"},
		},
	}
	assert.Equal(t, []map[string]any{{
		"workspace_id":  "w1",
		"page":          map[string]any{"page_id": "p1", "title": "Roadmap", "type": "page"},
		"credential_id": "cred",
	}}, buildOnlineDocument(st))
	assert.Equal(t, "w1", st.OnlineDocuments[0]["workspace_id"], "selection is not mutated")
}

func TestBuild_OnlineDocumentKeepsOnlyReceivedKeys(t *testing.T) {
	var pages []domain.OnlineDocumentPage
	require.NoError(t, json.Unmarshal([]byte(`[{"workspace_id":"ws-1"}]`), &pages))

	got := buildOnlineDocument(domain.SourceState{CurrentCredentialID: "cred", OnlineDocuments: pages})
	assert.Equal(t, []map[string]any{{
		"workspace_id":  "ws-1",
		"page":          map[string]any{},
		"credential_id": "cred",
	}}, got)
}

func TestBuild_WebsiteCrawl(t *testing.T) {
	st := domain.SourceState{
		CurrentCredentialID: "cred",
		WebsitePages: []domain.WebsitePage{
			{"source_url": "https://a.dev", "title": "A", "content": "body", "description": "d"},
			{"source_url": "https://b.dev"},
		},
	}
	assert.Equal(t, []map[string]any{{
		"source_url":    "https://a.dev",
		"title":         "A",
		"content":       "body",
		"description":   "d",
		"credential_id": "cred",
	}}, buildWebsiteCrawl(st))
	assert.NotContains(t, st.WebsitePages[0], "credential_id", "selection is not mutated")
}

func TestBuild_WebsiteCrawlForwardsPageVerbatim(t *testing.T) {
	var pages []domain.WebsitePage
	require.NoError(t, json.Unmarshal([]byte(`[{"url":"https://example.com","title":"Example"}]`), &pages))

	got := buildWebsiteCrawl(domain.SourceState{CurrentCredentialID: "cred-456", WebsitePages: pages})
	assert.Equal(t, []map[string]any{{
		"url":           "https://example.com",
		"title":         "Example",
		"credential_id": "cred-456",
	}}, got)
}

func TestBuild_OnlineDrive(t *testing.T) {
	st := domain.SourceState{
		CurrentCredentialID: "cred",
		Bucket:              "bkt",
		OnlineDriveFiles: []domain.OnlineDriveFile{
			{ID: "d1", Name: "one.txt", Type: "file"},
			{ID: "d2", Name: "two.txt", Type: "file"},
		},
		SelectedFileIDs: []string{"d2"},
	}
	assert.Equal(t, []map[string]any{{
		"bucket":        "bkt",
		"id":            "d2",
		"name":          "two.txt",
		"type":          "file",
		"credential_id": "cred",
	}}, buildOnlineDrive(st))

	st.OnlineDriveFiles = nil
	got := buildOnlineDrive(st)
	require.Len(t, got, 1)
	assert.Equal(t, "d2", got[0]["id"])
	assert.Equal(t, "", got[0]["name"])
}
