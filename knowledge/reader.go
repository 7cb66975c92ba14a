package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Reader turns a file into chunked documents.
type Reader interface {
	Read(ctx context.Context, path string) ([]Document, error)
}

// Chunking configures the chunk window of a reader.
type Chunking struct {
	Size    int
	Overlap int
}

func (c Chunking) params() (int, int) {
	size, overlap := c.Size, c.Overlap
	if size <= 0 {
		size = DefaultChunkSize
	}

	if overlap <= 0 && c.Size <= 0 {
		overlap = DefaultChunkOverlap
	}

	return size, overlap
}

// TextReader reads plain text and markdown files.
type TextReader struct {
	Chunking Chunking
}

// Read implements Reader.
func (r TextReader) Read(_ context.Context, path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	name := baseName(path)
	size, overlap := r.Chunking.params()

	doc := Document{
		Name:     name,
		Content:  string(data),
		Metadata: map[string]string{"source": path, "name": name},
	}

	return chunkDocument(doc, size, overlap), nil
}

// PDFReader extracts the plain text of every page of a PDF. Each page is
// chunked separately and tagged with its page number.
type PDFReader struct {
	Chunking Chunking
}

// Read implements Reader.
func (r PDFReader) Read(ctx context.Context, path string) ([]Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	name := baseName(path)
	size, overlap := r.Chunking.params()

	var docs []Document

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d of %s: %w", pageNum, path, err)
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		doc := Document{
			Name:    name,
			Content: text,
			Metadata: map[string]string{
				"source": path,
				"name":   name,
				"page":   strconv.Itoa(pageNum),
			},
		}

		docs = append(docs, chunkDocument(doc, size, overlap)...)
	}

	return docs, nil
}

// AutoReader picks PDFReader for .pdf files and TextReader otherwise.
type AutoReader struct {
	Chunking Chunking
}

// Read implements Reader.
func (r AutoReader) Read(ctx context.Context, path string) ([]Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return PDFReader(r).Read(ctx, path)
	}

	return TextReader(r).Read(ctx, path)
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
