package extract

import (
	"bytes"
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

// textLayerPages pulls the embedded text layer out of a PDF, one string per
// page in document order. The pdf library panics on some malformed files, so
// the whole walk runs under a recover and a damaged document comes back as
// an error instead of taking the caller down.
func textLayerPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf text layer: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One unreadable page must not sink the rest.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
