package source

import (
	"encoding/xml"
	"strings"
)

// Elements whose text is citation plumbing rather than article prose.
var skipElements = map[string]bool{
	"ref":      true,
	"ref-list": true,
	"xref":     true,
	"sup":      true,
}

// extractJATSText reduces a JATS XML document to plain body text,
// dropping reference markup. Returns "" when the document is empty or
// not parseable; callers treat that as missing content.
func extractJATSText(document string) string {
	if strings.TrimSpace(document) == "" {
		return ""
	}

	decoder := xml.NewDecoder(strings.NewReader(document))
	decoder.Strict = false

	var parts []string
	skipDepth := 0
	inBody := false
	bodyDepth := 0

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if skipDepth > 0 {
				skipDepth++
				continue
			}
			if skipElements[name] {
				skipDepth = 1
				continue
			}
			if name == "body" {
				inBody = true
			}
			if inBody {
				bodyDepth++
			}
		case xml.EndElement:
			if skipDepth > 0 {
				skipDepth--
				continue
			}
			if inBody {
				bodyDepth--
				if bodyDepth == 0 {
					inBody = false
				}
			}
		case xml.CharData:
			if skipDepth > 0 || !inBody {
				continue
			}
			if text := strings.TrimSpace(string(t)); text != "" {
				parts = append(parts, text)
			}
		}
	}

	return strings.Join(parts, " ")
}
