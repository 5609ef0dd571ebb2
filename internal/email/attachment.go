package email

import (
	"os"
	"path/filepath"
)

// defaultContentType is used when an attachment's MIME type is unknown.
const defaultContentType = "application/octet-stream"

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// AttachmentFromFile reads the full contents of the file at path into an
// Attachment. The filename is the path's base name and the content type
// defaults to application/octet-stream; callers that know better can set
// ContentType afterwards. Read failures propagate unchanged.
func AttachmentFromFile(path string) (Attachment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{
		Filename:    filepath.Base(path),
		ContentType: defaultContentType,
		Content:     content,
	}, nil
}
