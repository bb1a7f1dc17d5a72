package domain

import "encoding/json"

// ChunkingMode is the chunk structure produced by a pipeline run.
type ChunkingMode string

const (
	ChunkingGeneral     ChunkingMode = "text_model"
	ChunkingParentChild ChunkingMode = "hierarchical_model"
	ChunkingQA          ChunkingMode = "qa_model"
)

// ParentMode controls how parent-child chunks are grouped.
type ParentMode string

const (
	ParentModeParagraph ParentMode = "paragraph"
	ParentModeFullDoc   ParentMode = "full-doc"
)

// PreviewItem is one chunk of a general or parent-child preview payload.
type PreviewItem struct {
	Content     string   `json:"content"`
	ChildChunks []string `json:"child_chunks,omitempty"`
}

// PreviewOutputs is the raw preview payload returned by a test run.
type PreviewOutputs struct {
	ChunkStructure ChunkingMode  `json:"chunk_structure"`
	ParentMode     ParentMode    `json:"parent_mode,omitempty"`
	Preview        []PreviewItem `json:"preview"`
	QAPreview      []QAChunk     `json:"qa_preview"`
}

// QAChunk is a question and answer pair. Unrecognised fields are kept in Extra
// and written back on marshal.
type QAChunk struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Extra    map[string]any `json:"-"`
}

func (q QAChunk) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(q.Extra)+2)
	for k, v := range q.Extra {
		out[k] = v
	}
	out["question"] = q.Question
	out["answer"] = q.Answer
	return json.Marshal(out)
}

func (q *QAChunk) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q.Question = takeString(raw, "question")
	q.Answer = takeString(raw, "answer")
	q.Extra = nilIfEmpty(raw)
	return nil
}

// PreviewChunks is the bounded, display-ready form of a preview.
// It is one of GeneralChunks, ParentChildChunks or QAChunks.
type PreviewChunks interface {
	Mode() ChunkingMode
	previewChunks()
}

// GeneralChunk is a flat chunk. Summary is never populated by the formatter.
type GeneralChunk struct {
	Content string  `json:"content"`
	Summary *string `json:"summary,omitempty"`
}

// GeneralChunks is the preview of a text_model run.
type GeneralChunks []GeneralChunk

func (GeneralChunks) Mode() ChunkingMode { return ChunkingGeneral }
func (GeneralChunks) previewChunks()     {}

// ParentChildChunk is a parent chunk with its children.
type ParentChildChunk struct {
	ParentContent string     `json:"parent_content"`
	ChildContents []string   `json:"child_contents"`
	ParentMode    ParentMode `json:"parent_mode"`
}

// ParentChildChunks is the preview of a hierarchical_model run.
type ParentChildChunks struct {
	ParentMode        ParentMode         `json:"parent_mode"`
	ParentChildChunks []ParentChildChunk `json:"parent_child_chunks"`
}

func (ParentChildChunks) Mode() ChunkingMode { return ChunkingParentChild }
func (ParentChildChunks) previewChunks()     {}

// QAChunks is the preview of a qa_model run.
type QAChunks struct {
	QAChunks []QAChunk `json:"qa_chunks"`
}

func (QAChunks) Mode() ChunkingMode { return ChunkingQA }
func (QAChunks) previewChunks()     {}
