// Package normalisers turns raw uploaded bytes into text documents.
//
// Each subpackage handles one family of MIME types. A Registry picks the
// highest priority normaliser for a document and NewDefaultRegistry wires
// every built-in format.
package normalisers
