// Package email defines the outbound email data model and its construction helpers.
package email

// Email represents a single outbound message with all its components.
// It is pure data; serialization lives in the mime package and delivery
// in the provider packages.
type Email struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	ReplyTo     string
	Subject     string
	TextBody    string
	HtmlBody    string
	Attachments []Attachment

	// Headers holds additional message headers. Keys are unique; a key that
	// collides with a standard header overrides it (last write wins).
	Headers map[string]string
}

// Recipients returns every envelope recipient in To, Cc, Bcc order.
// This is the order RCPT TO commands are issued in.
func (e *Email) Recipients() []string {
	out := make([]string, 0, len(e.To)+len(e.Cc)+len(e.Bcc))
	out = append(out, e.To...)
	out = append(out, e.Cc...)
	out = append(out, e.Bcc...)
	return out
}

// AddAttachment appends an attachment to the message.
func (e *Email) AddAttachment(att Attachment) *Email {
	e.Attachments = append(e.Attachments, att)
	return e
}

// AttachFile reads the file at path and appends it as an attachment.
// Filesystem errors are returned unchanged.
func (e *Email) AttachFile(path string) error {
	att, err := AttachmentFromFile(path)
	if err != nil {
		return err
	}
	e.Attachments = append(e.Attachments, att)
	return nil
}
