// Package knowledge loads documents (text, markdown, PDF) into a vector
// database and retrieves the chunks relevant to a query. A Base implements
// core.KnowledgeSearcher so agents can search it directly or through the
// search_knowledge tool.
package knowledge

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Document is one retrievable unit of text.
type Document struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChunkText splits text into windows of at most size runes. Consecutive
// windows share overlap runes. A window is shortened to end at whitespace when
// that keeps at least half of it.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string

	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		for cut := end; cut > start+size/2; cut-- {
			if unicode.IsSpace(runes[cut]) {
				end = cut
				break
			}
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[start:end])))

		next := end - overlap
		if next <= start {
			next = end
		}

		start = next
	}

	return chunks
}

// chunkDocument splits doc into chunk documents with stable ids derived from
// the source and chunk index.
func chunkDocument(doc Document, size, overlap int) []Document {
	parts := ChunkText(doc.Content, size, overlap)
	out := make([]Document, 0, len(parts))

	for i, p := range parts {
		md := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			md[k] = v
		}

		md["chunk"] = strconv.Itoa(i)

		key := doc.Name + "#" + md["page"] + "#" + strconv.Itoa(i)
		if src := md["source"]; src != "" {
			key = src + "#" + key
		}

		out = append(out, Document{
			ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String(),
			Name:     doc.Name,
			Content:  p,
			Metadata: md,
		})
	}

	return out
}
