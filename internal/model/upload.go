package model

import (
	"path/filepath"
	"strings"
)

// Kind is the declared file kind of an upload, derived from its extension.
type Kind string

const (
	KindXLSX Kind = "xlsx"
	KindXLS  Kind = "xls"
	KindCSV  Kind = "csv"
	KindDOC  Kind = "doc"
	KindDOCX Kind = "docx"
	KindPDF  Kind = "pdf"
)

// SupportedExtensions is the accept list of the upload boundary.
var SupportedExtensions = []string{".xlsx", ".xls", ".csv", ".doc", ".docx", ".pdf"}

// KindFromName derives the declared kind from a file name. It returns false
// for anything outside SupportedExtensions.
func KindFromName(name string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return KindXLSX, true
	case ".xls":
		return KindXLS, true
	case ".csv":
		return KindCSV, true
	case ".doc":
		return KindDOC, true
	case ".docx":
		return KindDOCX, true
	case ".pdf":
		return KindPDF, true
	default:
		return "", false
	}
}

// Upload is one submitted file with its declared kind.
type Upload struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Content []byte `json:"-"`
}
