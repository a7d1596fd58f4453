package service

import (
	"encoding/base64"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DefaultMaxAttachmentBytes caps uploaded files at 5 MiB.
const DefaultMaxAttachmentBytes = 5 << 20

// maxDocumentRunes bounds how much extracted PDF text goes into a prompt.
const maxDocumentRunes = 15000

// Attachment is a file uploaded alongside a chat message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type attachmentKind int

const (
	kindNone attachmentKind = iota
	kindPDF
	kindImage
)

var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// classify returns the kind and the normalised MIME type. The declared
// content type wins, then content sniffing, then the file extension.
func (a *Attachment) classify() (attachmentKind, string) {
	candidates := []string{a.ContentType, http.DetectContentType(a.Data), extensionTypes[strings.ToLower(filepath.Ext(a.Name))]}
	for _, c := range candidates {
		mediaType, _, err := mime.ParseMediaType(c)
		if err != nil {
			continue
		}
		mediaType = strings.ToLower(mediaType)
		if mediaType == "image/jpg" {
			mediaType = "image/jpeg"
		}
		switch {
		case mediaType == "application/pdf":
			return kindPDF, mediaType
		case imageTypes[mediaType]:
			return kindImage, mediaType
		}
	}
	return kindNone, ""
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
