package constants

import (
	"bytes"
	"strings"
)

// AllowedExtensions holds the file extensions accepted for lab-report upload.
// Only PDFs carry the layered text / scanned pages this pipeline understands.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

var pdfMagic = []byte("%PDF-")

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFName reports whether the filename indicates a PDF upload.
func IsPDFName(name string) bool {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return false
	}
	_, ok := AllowedExtensions[NormalizeExt(name[i:])]
	return ok
}

// IsPDFContent checks the leading bytes for the PDF magic header.
func IsPDFContent(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}
