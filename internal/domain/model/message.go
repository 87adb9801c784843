package model

import "time"

// Message is a mail message as surfaced by the Graph passthrough. The façade
// never interprets message content beyond mapping the wire fields.
type Message struct {
	ID          string
	Subject     string
	From        string
	BodyPreview string
	IsRead      bool
	Importance  string
	ReceivedAt  time.Time
}

// OutgoingMessage is the payload for sending a new mail message or creating
// a draft. Drafts may be created without recipients.
type OutgoingMessage struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	// ContentType is "Text" or "HTML" in Graph terms. Defaults to Text.
	ContentType string
	// Importance is "low", "normal", or "high". Empty leaves the default.
	Importance string
}

// MessageUpdate is a partial update of a message's subject and body. Empty
// fields are left unchanged.
type MessageUpdate struct {
	Subject     string
	Body        string
	ContentType string
}

// Attachment is a file attachment added to a draft message.
type Attachment struct {
	Name    string
	Content []byte
}

// MailFolder is a mail folder summary from the Graph API.
type MailFolder struct {
	ID          string
	DisplayName string
	UnreadCount int
	TotalCount  int
}
