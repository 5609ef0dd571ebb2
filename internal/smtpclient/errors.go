package smtpclient

import "fmt"

// Protocol stages that can fail with a ProtocolError.
const (
	StageEHLO     = "EHLO"
	StageStartTLS = "STARTTLS"
	StageAuth     = "AUTH"
	StageMailFrom = "MAIL FROM"
	StageRcptTo   = "RCPT TO"
	StageData     = "DATA"
	StageSend     = "send"
)

// ProtocolError reports an SMTP command that received an unexpected status
// code. It carries the raw server response text for diagnostics.
type ProtocolError struct {
	// Stage is the protocol step that failed (one of the Stage constants).
	Stage string
	// Recipient is set when a RCPT TO command was rejected.
	Recipient string
	// Code is the status code parsed from the server's final response line.
	Code int
	// Response is the full response text, multi-line responses joined
	// with newlines.
	Response string
}

// Error formats the failure with the offending stage and the raw server
// response.
func (e *ProtocolError) Error() string {
	if e.Recipient != "" {
		return fmt.Sprintf("%s failed for %s: %s", e.Stage, e.Recipient, e.Response)
	}
	return fmt.Sprintf("%s failed: %s", e.Stage, e.Response)
}
