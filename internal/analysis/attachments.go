package analysis

import (
	"path/filepath"
	"strings"
)

const (
	dangerousExtensionPoints = 40
	dangerousMIMEPoints      = 30
	doubleExtensionPoints    = 20
)

// Attachment is the metadata of one attachment; contents are never inspected
type Attachment struct {
	Filename string
	Size     int64
	MimeType string
}

// ScoreAttachments scores attachments on executable extensions, executable
// MIME types and decoy double extensions
func (s *Suite) ScoreAttachments(attachments []Attachment) Score {
	var score Score
	for _, a := range attachments {
		name := strings.ToLower(strings.TrimSpace(a.Filename))
		if dangerousExtensions[filepath.Ext(name)] {
			score.add(dangerousExtensionPoints, "dangerous_extension:"+name)
		}
		if dangerousMIMETypes[baseMIMEType(a.MimeType)] {
			score.add(dangerousMIMEPoints, "dangerous_mime:"+baseMIMEType(a.MimeType))
		}
		if HasDoubleExtension(name) {
			score.add(doubleExtensionPoints, "double_extension:"+name)
		}
	}
	return score
}

// HasDoubleExtension reports names like "invoice.pdf.exe" where a document
// extension hides the real one
func HasDoubleExtension(filename string) bool {
	parts := strings.Split(strings.ToLower(filename), ".")
	if len(parts) < 3 {
		return false
	}
	last := parts[len(parts)-1]
	if last == "" || decoyExtensions[last] {
		return false
	}
	return decoyExtensions[parts[len(parts)-2]]
}

func baseMIMEType(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
