package preparation

import (
	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/sourcestore"
)

// TransferMethodLocalFile tags uploaded files in run requests.
const TransferMethodLocalFile = "local_file"

// kindHandler bundles the per-kind behaviour of the machine.
type kindHandler struct {
	clear func(*domain.SourceState)
	ready func(domain.SourceState) bool
	build func(domain.SourceState) []map[string]any
}

var handlers = map[domain.DatasourceKind]kindHandler{
	domain.KindLocalFile:      kindHandlerFor(domain.KindLocalFile, buildLocalFile),
	domain.KindOnlineDocument: kindHandlerFor(domain.KindOnlineDocument, buildOnlineDocument),
	domain.KindWebsiteCrawl:   kindHandlerFor(domain.KindWebsiteCrawl, buildWebsiteCrawl),
	domain.KindOnlineDrive:    kindHandlerFor(domain.KindOnlineDrive, buildOnlineDrive),
}

// unknownHandler is the pass-through branch for kinds outside the enumeration.
var unknownHandler = kindHandler{
	clear: func(*domain.SourceState) {},
	ready: func(domain.SourceState) bool { return true },
	build: func(domain.SourceState) []map[string]any { return []map[string]any{} },
}

func kindHandlerFor(kind domain.DatasourceKind, build func(domain.SourceState) []map[string]any) kindHandler {
	return kindHandler{
		clear: func(st *domain.SourceState) { sourcestore.ClearKindLocked(st, kind) },
		ready: func(st domain.SourceState) bool { return sourcestore.Ready(st, kind) },
		build: build,
	}
}

func handlerFor(kind domain.DatasourceKind) kindHandler {
	if h, ok := handlers[kind]; ok {
		return h
	}
	return unknownHandler
}

// Only the first selected item is sent; the UI selects one item per test run.

func buildLocalFile(st domain.SourceState) []map[string]any {
	if len(st.LocalFiles) == 0 {
		return []map[string]any{}
	}
	f := st.LocalFiles[0].File
	return []map[string]any{{
		"related_id":      f.ID,
		"name":            f.Name,
		"type":            f.Type,
		"size":            f.Size,
		"extension":       f.Extension,
		"mime_type":       f.MimeType,
		"url":             "",
		"transfer_method": TransferMethodLocalFile,
	}}
}

func buildOnlineDocument(st domain.SourceState) []map[string]any {
	if len(st.OnlineDocuments) == 0 {
		return []map[string]any{}
	}
	page := domain.CloneMap(st.OnlineDocuments[0])
	if page == nil {
		page = map[string]any{}
	}
	workspaceID, ok := page["workspace_id"]
	if !ok {
		workspaceID = ""
	}
	delete(page, "workspace_id")
	return []map[string]any{{
		"workspace_id":  workspaceID,
		"page":          page,
		"credential_id": st.CurrentCredentialID,
	}}
}

func buildWebsiteCrawl(st domain.SourceState) []map[string]any {
	if len(st.WebsitePages) == 0 {
		return []map[string]any{}
	}
	info := domain.CloneMap(st.WebsitePages[0])
	if info == nil {
		info = map[string]any{}
	}
	info["credential_id"] = st.CurrentCredentialID
	return []map[string]any{info}
}

func buildOnlineDrive(st domain.SourceState) []map[string]any {
	if len(st.SelectedFileIDs) == 0 {
		return []map[string]any{}
	}
	id := st.SelectedFileIDs[0]
	file := domain.OnlineDriveFile{ID: id}
	for _, f := range st.OnlineDriveFiles {
		if f.ID == id {
			file = f
			break
		}
	}
	return []map[string]any{{
		"bucket":        st.Bucket,
		"id":            file.ID,
		"name":          file.Name,
		"type":          file.Type,
		"credential_id": st.CurrentCredentialID,
	}}
}
