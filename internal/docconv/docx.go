package docconv

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// convertDocx extracts paragraph text from the DOCX main document part and
// renders it as Markdown with the file stem as a title heading.
func convertDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("docconv: open docx %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	var doc io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("docconv: open document part: %w", err)
			}
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docconv: %s has no word/document.xml", path)
	}
	defer func() { _ = doc.Close() }()

	paragraphs, err := docxParagraphs(doc)
	if err != nil {
		return "", fmt.Errorf("docconv: parse %s: %w", path, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", stem(path))
	for _, p := range paragraphs {
		b.WriteString("\n")
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// docxParagraphs scans WordprocessingML tokens collecting text runs per
// paragraph. Tabs and line breaks become spaces; empty paragraphs are
// dropped.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab", "br":
				current.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
