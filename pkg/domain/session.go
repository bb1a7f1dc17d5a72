package domain

import "time"

// Step is the position of the preparation flow.
type Step int

const (
	// StepSelectAndConfigure is where the datasource and its items are chosen.
	StepSelectAndConfigure Step = 1
	// StepProcessAndSubmit is where processing inputs are filled and the run is dispatched.
	StepProcessAndSubmit Step = 2
)

// StepDescriptor names a step for presentation.
type StepDescriptor struct {
	Step  Step   `json:"step"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// Steps returns the descriptors of the preparation steps, in order.
func Steps() []StepDescriptor {
	return []StepDescriptor{
		{Step: StepSelectAndConfigure, Value: "dataSource", Label: "Data Source"},
		{Step: StepProcessAndSubmit, Value: "documentProcessing", Label: "Document Processing"},
	}
}

// SessionStatus reports whether the preparation is still open.
type SessionStatus string

const (
	StatusPreparing  SessionStatus = "preparing"
	StatusDispatched SessionStatus = "dispatched"
)

// SourceState is the kind-specific selection of a preparation session.
type SourceState struct {
	// Local file
	LocalFiles []LocalFile `json:"local_files,omitempty"`

	// Online document
	DocumentsData   []map[string]any     `json:"documents_data,omitempty"`
	SearchValue     string               `json:"search_value,omitempty"`
	SelectedPagesID []string             `json:"selected_pages_id,omitempty"`
	OnlineDocuments []OnlineDocumentPage `json:"online_documents,omitempty"`
	CurrentDocument *OnlineDocumentPage  `json:"current_document,omitempty"`

	// Website crawl
	CrawlStep      CrawlStep     `json:"crawl_step,omitempty"`
	CrawlResult    *CrawlResult  `json:"crawl_result,omitempty"`
	CurrentWebsite *WebsitePage  `json:"current_website,omitempty"`
	WebsitePages   []WebsitePage `json:"website_pages,omitempty"`
	PreviewIndex   int           `json:"preview_index"`

	// Online drive
	OnlineDriveFiles []OnlineDriveFile `json:"online_drive_files,omitempty"`
	Bucket           string            `json:"bucket,omitempty"`
	Prefix           []string          `json:"prefix,omitempty"`
	Keywords         string            `json:"keywords,omitempty"`
	SelectedFileIDs  []string          `json:"selected_file_ids,omitempty"`

	CurrentCredentialID string `json:"current_credential_id"`
	CurrentNodeID       string `json:"current_node_id"`
}

// NewSourceState returns an empty selection.
func NewSourceState() SourceState {
	return SourceState{
		CrawlStep:    CrawlStepInit,
		PreviewIndex: -1,
	}
}

// Clone returns a deep copy of the selection.
func (s SourceState) Clone() SourceState {
	out := s
	out.LocalFiles = cloneSlice(s.LocalFiles)
	if s.DocumentsData != nil {
		out.DocumentsData = make([]map[string]any, len(s.DocumentsData))
		for i, d := range s.DocumentsData {
			out.DocumentsData[i] = CloneMap(d)
		}
	}
	out.SelectedPagesID = cloneSlice(s.SelectedPagesID)
	if s.OnlineDocuments != nil {
		out.OnlineDocuments = make([]OnlineDocumentPage, len(s.OnlineDocuments))
		for i, p := range s.OnlineDocuments {
			out.OnlineDocuments[i] = CloneMap(p)
		}
	}
	if s.CurrentDocument != nil {
		c := OnlineDocumentPage(CloneMap(*s.CurrentDocument))
		out.CurrentDocument = &c
	}
	if s.CrawlResult != nil {
		r := CrawlResult{TimeConsuming: s.CrawlResult.TimeConsuming, Data: cloneWebsitePages(s.CrawlResult.Data)}
		out.CrawlResult = &r
	}
	if s.CurrentWebsite != nil {
		w := WebsitePage(CloneMap(*s.CurrentWebsite))
		out.CurrentWebsite = &w
	}
	out.WebsitePages = cloneWebsitePages(s.WebsitePages)
	out.OnlineDriveFiles = cloneSlice(s.OnlineDriveFiles)
	out.Prefix = cloneSlice(s.Prefix)
	out.SelectedFileIDs = cloneSlice(s.SelectedFileIDs)
	return out
}

// Session is the persisted snapshot of a preparation.
type Session struct {
	ID         string         `json:"id"`
	PipelineID string         `json:"pipeline_id"`
	Step       Step           `json:"step"`
	Datasource *Datasource    `json:"datasource,omitempty"`
	Sources    SourceState    `json:"sources"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Status     SessionStatus  `json:"status"`
	RunID      string         `json:"run_id,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewSession creates a session at the first step with an empty selection.
func NewSession(id, pipelineID string) *Session {
	return &Session{
		ID:         id,
		PipelineID: pipelineID,
		Step:       StepSelectAndConfigure,
		Sources:    NewSourceState(),
		Status:     StatusPreparing,
		UpdatedAt:  time.Now(),
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Datasource != nil {
		ds := *s.Datasource
		ds.NodeData = s.Datasource.NodeData.clone()
		out.Datasource = &ds
	}
	out.Sources = s.Sources.Clone()
	out.Inputs = CloneMap(s.Inputs)
	return &out
}

func (c NodeConfig) clone() NodeConfig {
	c.FileExtensions = cloneSlice(c.FileExtensions)
	c.DatasourceParameters = CloneMap(c.DatasourceParameters)
	c.DatasourceConfigurations = CloneMap(c.DatasourceConfigurations)
	return c
}

func cloneWebsitePages(in []WebsitePage) []WebsitePage {
	if in == nil {
		return nil
	}
	out := make([]WebsitePage, len(in))
	for i, p := range in {
		out[i] = CloneMap(p)
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// CloneMap deep-copies nested maps and []any slices; other values are shared.
func CloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
