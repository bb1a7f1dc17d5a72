package preview_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(n, children int) []domain.PreviewItem {
	out := make([]domain.PreviewItem, n)
	for i := range out {
		out[i].Content = fmt.Sprintf("chunk-%d", i)
		for j := 0; j < children; j++ {
			out[i].ChildChunks = append(out[i].ChildChunks, fmt.Sprintf("child-%d-%d", i, j))
		}
	}
	return out
}

func TestFormat_General(t *testing.T) {
	out, err := preview.Format(&domain.PreviewOutputs{
		ChunkStructure: domain.ChunkingGeneral,
		Preview:        items(25, 0),
	}, 20)
	require.NoError(t, err)

	chunks, ok := out.(domain.GeneralChunks)
	require.True(t, ok)
	require.Len(t, chunks, 20)
	assert.Equal(t, "chunk-0", chunks[0].Content)
	assert.Equal(t, "chunk-19", chunks[19].Content)
	assert.Nil(t, chunks[0].Summary)
}

func TestFormat_ParentChildParagraph(t *testing.T) {
	out, err := preview.Format(&domain.PreviewOutputs{
		ChunkStructure: domain.ChunkingParentChild,
		ParentMode:     domain.ParentModeParagraph,
		Preview:        items(30, 25),
	}, 20)
	require.NoError(t, err)

	chunks := out.(domain.ParentChildChunks)
	assert.Equal(t, domain.ParentModeParagraph, chunks.ParentMode)
	require.Len(t, chunks.ParentChildChunks, 20)
	for _, c := range chunks.ParentChildChunks {
		assert.Len(t, c.ChildContents, 25, "paragraph mode keeps every child")
		assert.Equal(t, domain.ParentModeParagraph, c.ParentMode)
	}
}

func TestFormat_ParentChildFullDoc(t *testing.T) {
	out, err := preview.Format(&domain.PreviewOutputs{
		ChunkStructure: domain.ChunkingParentChild,
		ParentMode:     domain.ParentModeFullDoc,
		Preview:        items(3, 50),
	}, 20)
	require.NoError(t, err)

	chunks := out.(domain.ParentChildChunks)
	assert.Equal(t, domain.ParentModeFullDoc, chunks.ParentMode)
	require.Len(t, chunks.ParentChildChunks, 3, "full-doc keeps every parent")
	for _, c := range chunks.ParentChildChunks {
		assert.Len(t, c.ChildContents, 20)
		assert.Equal(t, "child-0-0", chunks.ParentChildChunks[0].ChildContents[0])
	}
}

func TestFormat_ParentChildMissingModeIsParagraph(t *testing.T) {
	out, err := preview.Format(&domain.PreviewOutputs{
		ChunkStructure: domain.ChunkingParentChild,
		Preview:        items(2, 1),
	}, 1)
	require.NoError(t, err)

	chunks := out.(domain.ParentChildChunks)
	assert.Equal(t, domain.ParentModeParagraph, chunks.ParentMode)
	assert.Len(t, chunks.ParentChildChunks, 1)
}

func TestFormat_QAPreservesExtraFields(t *testing.T) {
	var outputs domain.PreviewOutputs
	raw := `{"chunk_structure":"qa_model","qa_preview":[
		{"question":"q1","answer":"a1","score":1},
		{"question":"q2","answer":"a2"},
		{"question":"q3","answer":"a3"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &outputs))

	out, err := preview.Format(&outputs, 2)
	require.NoError(t, err)

	qa := out.(domain.QAChunks)
	require.Len(t, qa.QAChunks, 2)
	assert.Equal(t, float64(1), qa.QAChunks[0].Extra["score"])

	encoded, err := json.Marshal(qa)
	require.NoError(t, err)
	assert.JSONEq(t, `{"qa_chunks":[{"question":"q1","answer":"a1","score":1},{"question":"q2","answer":"a2"}]}`, string(encoded))
}

func TestFormat_EmptyArraysProduceEmptyStructures(t *testing.T) {
	out, err := preview.Format(&domain.PreviewOutputs{ChunkStructure: domain.ChunkingGeneral, Preview: []domain.PreviewItem{}}, 20)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out.(domain.GeneralChunks))

	out, err = preview.Format(&domain.PreviewOutputs{ChunkStructure: domain.ChunkingParentChild, Preview: []domain.PreviewItem{}}, 20)
	require.NoError(t, err)
	assert.NotNil(t, out.(domain.ParentChildChunks).ParentChildChunks)

	out, err = preview.Format(&domain.PreviewOutputs{ChunkStructure: domain.ChunkingQA, QAPreview: []domain.QAChunk{}}, 20)
	require.NoError(t, err)
	assert.NotNil(t, out.(domain.QAChunks).QAChunks)
}

func TestFormat_NilArraysFailFast(t *testing.T) {
	for _, mode := range []domain.ChunkingMode{domain.ChunkingGeneral, domain.ChunkingParentChild, domain.ChunkingQA} {
		_, err := preview.Format(&domain.PreviewOutputs{ChunkStructure: mode}, 20)
		assert.ErrorIs(t, err, preview.ErrMalformedOutputs, string(mode))
	}
}

func TestFormat_AbsentOrUnknown(t *testing.T) {
	out, err := preview.Format(nil, 20)
	assert.NoError(t, err)
	assert.Nil(t, out)

	out, err = preview.Format(&domain.PreviewOutputs{ChunkStructure: "graph_model", Preview: items(1, 0)}, 20)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestFormat_DefaultLimit(t *testing.T) {
	out, err := preview.Format(&domain.PreviewOutputs{ChunkStructure: domain.ChunkingGeneral, Preview: items(40, 0)}, 0)
	require.NoError(t, err)
	assert.Len(t, out.(domain.GeneralChunks), preview.DefaultLimit)
}

func TestFormatter_MemoisesByIdentity(t *testing.T) {
	f := preview.NewFormatter(5)
	outputs := &domain.PreviewOutputs{ChunkStructure: domain.ChunkingGeneral, Preview: items(10, 0)}

	first, err := f.Format(outputs)
	require.NoError(t, err)

	// Mutating the same pointer does not invalidate the cache.
	outputs.Preview = items(1, 0)
	second, err := f.Format(outputs)
	require.NoError(t, err)
	assert.Len(t, second.(domain.GeneralChunks), 5)
	assert.Equal(t, first, second)

	third, err := f.Format(&domain.PreviewOutputs{ChunkStructure: domain.ChunkingGeneral, Preview: items(1, 0)})
	require.NoError(t, err)
	assert.Len(t, third.(domain.GeneralChunks), 1)
}

func TestRender(t *testing.T) {
	md := preview.Render(domain.ParentChildChunks{
		ParentMode: domain.ParentModeFullDoc,
		ParentChildChunks: []domain.ParentChildChunk{
			{ParentContent: "whole doc", ChildContents: []string{"a", "b"}, ParentMode: domain.ParentModeFullDoc},
		},
	})
	assert.Contains(t, md, "full-doc")
	assert.Contains(t, md, "whole doc")
	assert.Contains(t, md, "**C-2** b")

	assert.Contains(t, preview.Render(nil), "No preview")
}
