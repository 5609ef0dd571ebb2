package email

import "fmt"

// Builder assembles an Email through chained calls. A Builder is local to one
// construction; it is not safe for concurrent use and should be discarded
// after Build.
type Builder struct {
	msg Email
	err error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// To appends recipient addresses.
func (b *Builder) To(addrs ...string) *Builder {
	b.msg.To = append(b.msg.To, addrs...)
	return b
}

// Cc appends carbon-copy addresses.
func (b *Builder) Cc(addrs ...string) *Builder {
	b.msg.Cc = append(b.msg.Cc, addrs...)
	return b
}

// Bcc appends blind-carbon-copy addresses.
func (b *Builder) Bcc(addrs ...string) *Builder {
	b.msg.Bcc = append(b.msg.Bcc, addrs...)
	return b
}

// From sets the originator address. When empty, delivery falls back to the
// configured username.
func (b *Builder) From(addr string) *Builder {
	b.msg.From = addr
	return b
}

// ReplyTo sets the Reply-To address.
func (b *Builder) ReplyTo(addr string) *Builder {
	b.msg.ReplyTo = addr
	return b
}

// Subject sets the message subject.
func (b *Builder) Subject(subject string) *Builder {
	b.msg.Subject = subject
	return b
}

// Text sets the plain-text body.
func (b *Builder) Text(body string) *Builder {
	b.msg.TextBody = body
	return b
}

// HTML sets the HTML body.
func (b *Builder) HTML(body string) *Builder {
	b.msg.HtmlBody = body
	return b
}

// Header sets an additional message header. Setting a standard header name
// overrides the generated value for that header.
func (b *Builder) Header(key, value string) *Builder {
	if b.msg.Headers == nil {
		b.msg.Headers = make(map[string]string)
	}
	b.msg.Headers[key] = value
	return b
}

// Attachment appends a prebuilt attachment.
func (b *Builder) Attachment(att Attachment) *Builder {
	b.msg.Attachments = append(b.msg.Attachments, att)
	return b
}

// Attach reads the file at path and appends it as an attachment. The first
// read failure is remembered and returned from Build.
func (b *Builder) Attach(path string) *Builder {
	if b.err != nil {
		return b
	}
	att, err := AttachmentFromFile(path)
	if err != nil {
		b.err = err
		return b
	}
	b.msg.Attachments = append(b.msg.Attachments, att)
	return b
}

// Build validates the accumulated message and returns it. It fails if an
// Attach call failed earlier or if no To recipient was set.
func (b *Builder) Build() (*Email, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.msg.To) == 0 {
		return nil, fmt.Errorf("email has no recipients")
	}
	msg := b.msg
	return &msg, nil
}
