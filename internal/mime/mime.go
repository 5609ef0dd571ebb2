// Package mime serializes an email.Email into an RFC 5322 message with
// RFC 2045 MIME framing, suitable for the SMTP DATA phase or the SES raw
// message API.
package mime

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/shineum/smtp-send-lite/internal/email"
)

// base64LineLength is the maximum encoded line length per RFC 2045.
const base64LineLength = 76

// Build serializes msg into a complete MIME document. fallbackFrom is used
// as the From header when the message does not carry its own originator.
//
// The top-level structure depends on the message content:
//   - attachments present: multipart/mixed, with text and html nested in a
//     multipart/alternative part when both are set
//   - html body and no attachments: multipart/alternative, plain then html
//   - plain text only: a single text/plain document, no multipart envelope
func Build(msg *email.Email, fallbackFrom string) ([]byte, error) {
	var buf bytes.Buffer

	writeHeaders(&buf, msg, fallbackFrom)

	switch {
	case len(msg.Attachments) > 0:
		if err := writeMixed(&buf, msg); err != nil {
			return nil, err
		}
	case msg.HtmlBody != "":
		writeAlternative(&buf, msg)
	default:
		fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
		fmt.Fprintf(&buf, "Content-Type: text/plain; charset=UTF-8\r\n")
		fmt.Fprintf(&buf, "\r\n")
		buf.WriteString(msg.TextBody)
		fmt.Fprintf(&buf, "\r\n")
	}

	return buf.Bytes(), nil
}

// header is one serialized header line. Standard headers are emitted in a
// fixed order; custom headers follow and override standard ones on key
// collision (last write wins).
type header struct {
	key   string
	value string
}

// writeHeaders emits the top-level message headers in Subject, From, To,
// Cc, Reply-To, Message-ID order, then the message's custom headers.
func writeHeaders(buf *bytes.Buffer, msg *email.Email, fallbackFrom string) {
	from := msg.From
	if from == "" {
		from = fallbackFrom
	}

	headers := []header{
		{"Subject", msg.Subject},
		{"From", from},
		{"To", strings.Join(msg.To, ", ")},
	}
	if len(msg.Cc) > 0 {
		headers = append(headers, header{"Cc", strings.Join(msg.Cc, ", ")})
	}
	if msg.ReplyTo != "" {
		headers = append(headers, header{"Reply-To", msg.ReplyTo})
	}
	if !hasCustomHeader(msg, "Message-Id") {
		headers = append(headers, header{"Message-ID", generateMessageID(from)})
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[textproto.CanonicalMIMEHeaderKey(h.key)] = i
	}

	// Sorted for stable output; map insertion order carries no meaning.
	custom := make([]string, 0, len(msg.Headers))
	for key := range msg.Headers {
		custom = append(custom, key)
	}
	sort.Strings(custom)

	for _, key := range custom {
		canonical := textproto.CanonicalMIMEHeaderKey(key)
		if i, ok := index[canonical]; ok {
			headers[i].value = msg.Headers[key]
			continue
		}
		index[canonical] = len(headers)
		headers = append(headers, header{key, msg.Headers[key]})
	}

	for _, h := range headers {
		fmt.Fprintf(buf, "%s: %s\r\n", h.key, h.value)
	}
}

// writeMixed emits a multipart/mixed container holding the bodies followed
// by one part per attachment.
func writeMixed(buf *bytes.Buffer, msg *email.Email) error {
	writer := multipart.NewWriter(buf)
	fmt.Fprintf(buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	if msg.TextBody != "" && msg.HtmlBody != "" {
		if err := writeNestedAlternative(writer, msg); err != nil {
			return err
		}
	} else if msg.TextBody != "" {
		if err := writeTextPart(writer, "text/plain", msg.TextBody); err != nil {
			return err
		}
	} else if msg.HtmlBody != "" {
		if err := writeTextPart(writer, "text/html", msg.HtmlBody); err != nil {
			return err
		}
	}

	for _, att := range msg.Attachments {
		if err := writeAttachment(writer, att); err != nil {
			return err
		}
	}

	return writer.Close()
}

// writeAlternative emits a multipart/alternative container with the plain
// part first and the html part second.
func writeAlternative(buf *bytes.Buffer, msg *email.Email) {
	writer := multipart.NewWriter(buf)
	fmt.Fprintf(buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())

	if msg.TextBody != "" {
		writeTextPart(writer, "text/plain", msg.TextBody)
	}
	if msg.HtmlBody != "" {
		writeTextPart(writer, "text/html", msg.HtmlBody)
	}
	writer.Close()
}

// writeNestedAlternative emits a multipart/alternative part inside an outer
// multipart/mixed writer, holding both the plain and html bodies.
func writeNestedAlternative(outer *multipart.Writer, msg *email.Email) error {
	var nested bytes.Buffer
	inner := multipart.NewWriter(&nested)
	if err := writeTextPart(inner, "text/plain", msg.TextBody); err != nil {
		return err
	}
	if err := writeTextPart(inner, "text/html", msg.HtmlBody); err != nil {
		return err
	}
	if err := inner.Close(); err != nil {
		return err
	}

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Type",
		fmt.Sprintf("multipart/alternative; boundary=%q", inner.Boundary()))
	part, err := outer.CreatePart(partHeader)
	if err != nil {
		return fmt.Errorf("failed to create alternative part: %w", err)
	}
	_, err = part.Write(nested.Bytes())
	return err
}

// writeTextPart emits one text/* body part with UTF-8 charset.
func writeTextPart(writer *multipart.Writer, contentType, body string) error {
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Type", contentType+"; charset=UTF-8")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return fmt.Errorf("failed to create body part: %w", err)
	}
	_, err = part.Write([]byte(body))
	return err
}

// writeAttachment emits one base64-encoded attachment part. The filename is
// carried verbatim in the Content-Disposition header.
func writeAttachment(writer *multipart.Writer, att email.Attachment) error {
	mediaType, subType, err := SplitContentType(att.ContentType)
	if err != nil {
		return err
	}

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Type", mediaType+"/"+subType)
	partHeader.Set("Content-Transfer-Encoding", "base64")
	partHeader.Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s", att.Filename))

	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return fmt.Errorf("failed to create attachment part: %w", err)
	}
	_, err = part.Write([]byte(encodeBase64WithLineBreaks(att.Content)))
	return err
}

// SplitContentType splits a type/subtype content type on its first slash.
// It fails when no slash is present.
func SplitContentType(contentType string) (string, string, error) {
	mediaType, subType, ok := strings.Cut(contentType, "/")
	if !ok || mediaType == "" || subType == "" {
		return "", "", fmt.Errorf("invalid content type %q", contentType)
	}
	return mediaType, subType, nil
}

// generateMessageID returns a unique Message-ID using the domain of the
// originator address, falling back to localhost.
func generateMessageID(from string) string {
	domain := "localhost"
	if _, d, ok := strings.Cut(from, "@"); ok && d != "" {
		domain = d
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// hasCustomHeader reports whether the message's custom headers contain key,
// compared case-insensitively via canonical MIME form.
func hasCustomHeader(msg *email.Email, key string) bool {
	canonical := textproto.CanonicalMIMEHeaderKey(key)
	for k := range msg.Headers {
		if textproto.CanonicalMIMEHeaderKey(k) == canonical {
			return true
		}
	}
	return false
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line
// breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for i := 0; i < len(encoded); i += base64LineLength {
		end := i + base64LineLength
		if end > len(encoded) {
			end = len(encoded)
		}
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}
