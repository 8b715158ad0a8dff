// Package chunker deterministically splits file content and conversation
// messages into indexable ContentChunks (spec §4.3). Both functions are
// pure: identical input always produces byte-identical chunk content and
// locations.
package chunker

import (
	"encoding/json"
	"strings"

	"turn-orchestrator/pkg/types"
)

// DefaultLineWindow is L in spec §4.3.
const DefaultLineWindow = 50

// ChunkFile splits content into fixed-size line windows of lineWindow
// lines each. Concatenating the returned chunks' Content in order,
// separated by "\n", reproduces content exactly (spec §4.3's invariant).
func ChunkFile(path, content string, lineWindow int) []types.ContentChunk {
	if lineWindow <= 0 {
		lineWindow = DefaultLineWindow
	}
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	n := len(lines)

	var chunks []types.ContentChunk
	startChar := 0
	for k := 0; k*lineWindow < n; k++ {
		startLine := k*lineWindow + 1
		endLine := (k + 1) * lineWindow
		if endLine > n {
			endLine = n
		}

		window := lines[k*lineWindow : endLine]
		text := strings.Join(window, "\n")
		endChar := startChar + len(text)

		loc := types.FileChunkLocation{
			Path:      path,
			StartLine: startLine,
			EndLine:   endLine,
			StartChar: startChar,
			EndChar:   endChar,
		}
		locJSON, _ := json.Marshal(loc)

		chunks = append(chunks, types.ContentChunk{
			SourceType: types.SourceTypeFile,
			ChunkIndex: k,
			Content:    text,
			Location:   string(locJSON),
			TokenCount: approxTokenCount(text),
		})

		startChar = endChar + 1 // account for the "\n" seam between chunks
	}
	return chunks
}

// ChunkMessage produces the single chunk for a conversation message (spec
// §4.3: "Messages: always a single chunk, chunk_index=0").
func ChunkMessage(roundNumber int, speaker, content string) types.ContentChunk {
	loc := types.MessageChunkLocation{RoundNumber: roundNumber, Speaker: speaker}
	locJSON, _ := json.Marshal(loc)

	return types.ContentChunk{
		SourceType: types.SourceTypeMessage,
		ChunkIndex: 0,
		Content:    content,
		Location:   string(locJSON),
		TokenCount: approxTokenCount(content),
	}
}

// approxTokenCount is spec §4.3's token_count ≈ ⌈len(content)/4⌉.
func approxTokenCount(content string) int {
	return (len(content) + 3) / 4
}
