package normalisers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers/docx"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers/html"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers/markdown"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers/pdf"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers/plaintext"
)

// RegisterDefaults registers every built-in normaliser.
func RegisterDefaults(r *Registry) {
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pdf.New())
}

// NewDefaultRegistry returns a registry holding the built-in normalisers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// extensionTypes maps lower-case file extensions to MIME types.
var extensionTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".csv":      "text/csv",
	".tsv":      "text/tab-separated-values",
	".json":     "application/json",
	".xml":      "application/xml",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".java":     "text/x-java",
	".c":        "text/x-c",
	".h":        "text/x-c",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
	".js":       "text/javascript",
	".css":      "text/css",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".pdf":      "application/pdf",
	".docx":     docx.MIMEType,
}

// DetectMIMEType guesses a MIME type from the file extension, falling back
// to content sniffing.
func DetectMIMEType(name string, content []byte) string {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return baseType(http.DetectContentType(content))
}
