package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxDefaultDocumentPath = "word/document.xml"
	docxContentTypesPath    = "[Content_Types].xml"
	docxMainContentType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

type contentTypes struct {
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// boundedReader fails with ErrContentTooLarge once more than remaining bytes have been read.
// Zip parts are inflated through it so the read limit applies to the expanded XML, not only to
// the compressed archive.
type boundedReader struct {
	r         io.Reader
	remaining int64
}

func (b *boundedReader) Read(p []byte) (int, error) {
	if b.remaining < 0 {
		return 0, ErrContentTooLarge
	}
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return n, ErrContentTooLarge
	}
	return n, err
}

func extractDOCX(content []byte, maxBytes int64) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: docx is not a zip archive: %v", ErrCorruptContent, err)
	}

	docPath := mainDocumentPath(zr, maxBytes)
	for _, f := range zr.File {
		if f.Name != docPath {
			continue
		}
		if f.UncompressedSize64 > uint64(maxBytes) {
			return "", fmt.Errorf("%w: %s inflates to %d bytes", ErrContentTooLarge, f.Name, f.UncompressedSize64)
		}
		return readDocumentXML(f, maxBytes)
	}
	return "", fmt.Errorf("%w: docx part %s not found", ErrCorruptContent, docPath)
}

func mainDocumentPath(zr *zip.Reader, maxBytes int64) string {
	for _, f := range zr.File {
		if f.Name != docxContentTypesPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return docxDefaultDocumentPath
		}
		defer rc.Close()

		var types contentTypes
		if err := xml.NewDecoder(&boundedReader{r: rc, remaining: maxBytes}).Decode(&types); err != nil {
			return docxDefaultDocumentPath
		}
		for _, override := range types.Overrides {
			if override.ContentType == docxMainContentType {
				return strings.TrimPrefix(override.PartName, "/")
			}
		}
	}
	return docxDefaultDocumentPath
}

// readDocumentXML walks the WordprocessingML body: every <w:p> becomes one line and the
// text of its <w:t> runs is concatenated. The header size is not trusted: the inflated stream
// itself is bounded by maxBytes.
func readDocumentXML(f *zip.File, maxBytes int64) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrCorruptContent, f.Name, err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(&boundedReader{r: rc, remaining: maxBytes})
	var (
		out       strings.Builder
		paragraph strings.Builder
		inText    bool
	)

	flush := func() {
		line := strings.TrimRight(paragraph.String(), " \t")
		paragraph.Reset()
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(line)
	}

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrContentTooLarge) {
			return "", fmt.Errorf("%w: %s exceeds %d bytes once inflated", ErrContentTooLarge, f.Name, maxBytes)
		}
		if err != nil {
			return "", fmt.Errorf("%w: parse %s: %v", ErrCorruptContent, f.Name, err)
		}

		switch el := token.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br", "cr":
				paragraph.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(el)
			}
		}
	}

	if paragraph.Len() > 0 {
		flush()
	}

	return strings.TrimSpace(out.String()), nil
}
