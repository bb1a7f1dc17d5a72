package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	for _, k := range Kinds() {
		assert.True(t, k.Known(), string(k))
	}
	assert.False(t, DatasourceKind("ftp").Known())
	assert.False(t, DatasourceKind("").Known())
}

func TestOption_Datasource(t *testing.T) {
	opt := DatasourceOption{Label: "Notion", Value: "node-2", Data: NodeConfig{Type: NodeTypeDatasource, ProviderType: KindOnlineDocument}}
	ds := opt.Datasource()
	assert.Equal(t, "node-2", ds.NodeID)
	assert.Equal(t, KindOnlineDocument, ds.Kind)
	assert.Equal(t, opt.Data, ds.NodeData)
}

func TestSteps(t *testing.T) {
	steps := Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "dataSource", steps[0].Value)
	assert.Equal(t, "documentProcessing", steps[1].Value)
}

func TestSession_CloneIsolation(t *testing.T) {
	s := NewSession("s", "p")
	s.Sources.OnlineDocuments = []OnlineDocumentPage{{"workspace_id": "w", "page_id": "p1", "type": "page"}}
	s.Sources.CurrentWebsite = &WebsitePage{"url": "https://a.dev"}
	s.Sources.SelectedFileIDs = []string{"f1"}
	s.Inputs = map[string]any{"nested": map[string]any{"a": 1}}

	c := s.Clone()
	c.Sources.OnlineDocuments[0]["type"] = "database"
	(*c.Sources.CurrentWebsite)["url"] = "https://b.dev"
	c.Sources.SelectedFileIDs[0] = "f2"
	c.Inputs["nested"].(map[string]any)["a"] = 2

	assert.Equal(t, "page", s.Sources.OnlineDocuments[0]["type"])
	assert.Equal(t, "https://a.dev", s.Sources.CurrentWebsite.URL())
	assert.Equal(t, "f1", s.Sources.SelectedFileIDs[0])
	assert.Equal(t, 1, s.Inputs["nested"].(map[string]any)["a"])
}

func TestNewSourceState(t *testing.T) {
	s := NewSourceState()
	assert.Equal(t, CrawlStepInit, s.CrawlStep)
	assert.Equal(t, -1, s.PreviewIndex)
}

func TestPages_KeepReceivedFields(t *testing.T) {
	in := `{"workspace_id":"w1","page_id":"p1","title":"Doc","type":"page","last_edited_time":3}`
	var page OnlineDocumentPage
	require.NoError(t, json.Unmarshal([]byte(in), &page))
	assert.Equal(t, "w1", page.WorkspaceID())
	assert.Equal(t, "p1", page.PageID())
	assert.Equal(t, "Doc", page.Title())

	raw, err := json.Marshal(page)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(raw))

	var site WebsitePage
	require.NoError(t, json.Unmarshal([]byte(`{"url":"https://a.dev","content":"body"}`), &site))
	assert.Equal(t, "https://a.dev", site.URL())
	assert.Empty(t, site.Title())
	raw, err = json.Marshal(site)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://a.dev","content":"body"}`, string(raw))

	assert.Equal(t, "https://s.dev", WebsitePage{"source_url": "https://s.dev", "url": "https://u.dev"}.URL())
}

func TestQAChunk_PreservesExtraFields(t *testing.T) {
	in := `{"question":"Q","answer":"A","score":0.5}`
	var q QAChunk
	require.NoError(t, json.Unmarshal([]byte(in), &q))
	assert.Equal(t, "Q", q.Question)
	assert.Equal(t, "A", q.Answer)

	out, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}
