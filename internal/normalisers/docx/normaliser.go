// Package docx normalises Word documents by reading word/document.xml
// from the zip container.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers/plaintext"
)

// MIMEType is the Office Open XML word processing type.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// maxPartSize caps the decompressed size of one zip entry.
const maxPartSize = 64 << 20

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts paragraph text. Explicit page breaks are recorded as
// page start offsets.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %v", domain.ErrInvalidInput, err)
	}

	body, err := readPart(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}
	text, pages, err := parseBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: word/document.xml: %v", domain.ErrInvalidInput, err)
	}

	meta := maps.Clone(raw.Metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["format"] = "docx"
	if len(pages) > 1 {
		meta[domain.MetaPageStarts] = pages
	}

	title := ""
	if core, err := readPart(zr, "docProps/core.xml"); err == nil {
		title = coreTitle(core)
	}
	if title == "" {
		title = plaintext.Title(raw)
	}

	return &driven.NormaliseResult{Document: domain.Document{
		Title:    title,
		Content:  text,
		Metadata: meta,
	}}, nil
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrInvalidInput, name)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxPartSize))
}

// parseBody walks the WordprocessingML token stream. Paragraphs are joined
// by blank lines, tabs and line breaks are kept.
func parseBody(data []byte) (string, []int, error) {
	var (
		b      strings.Builder
		para   strings.Builder
		pages  = []int{0}
		runes  int
		inText bool
	)
	flush := func() {
		p := strings.TrimSpace(para.String())
		para.Reset()
		if p == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
			runes += 2
		}
		b.WriteString(p)
		runes += utf8.RuneCountInString(p)
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				if breakType(t) == "page" {
					flush()
					if last := pages[len(pages)-1]; runes > last {
						pages = append(pages, runes+2)
					}
					continue
				}
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	flush()
	return b.String(), pages, nil
}

func breakType(t xml.StartElement) string {
	for _, a := range t.Attr {
		if a.Name.Local == "type" {
			return a.Value
		}
	}
	return ""
}

func coreTitle(data []byte) string {
	var core struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(data, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
