package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

func extractPDF(ctx context.Context, content []byte, maxBytes int64) (text string, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if recovered := recover(); recovered != nil {
			text = ""
			err = fmt.Errorf("%w: pdf: %v", ErrCorruptContent, recovered)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrCorruptContent, err)
	}

	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: pdf page %d: %v", ErrCorruptContent, i, err)
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(pageText)
		if int64(buf.Len()) > maxBytes {
			return "", fmt.Errorf("%w: pdf text exceeds %d bytes", ErrContentTooLarge, maxBytes)
		}
	}
	return buf.String(), nil
}
