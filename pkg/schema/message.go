package schema

// User is a member of the bot's audience, as supplied by the user directory.
type User struct {
	ID         string         `json:"id"`
	ChatID     string         `json:"chat_id"`
	Username   string         `json:"username,omitempty"`
	Name       string         `json:"name,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Attachment is a file carried by an inbound reply.
type Attachment struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size"`
	Data     []byte `json:"-"`
}

// Reply is an inbound user message routed to an open conversation.
type Reply struct {
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// PageNav carries pagination controls attached to an outbound message.
// The transport renders these as navigation buttons; tokens are
// "<session_id>#<page>".
type PageNav struct {
	SessionID string `json:"session_id"`
	Page      int    `json:"page"`
	PageCount int    `json:"page_count"`
}

// OutboundMessage is what the engine hands to the transport for delivery.
// Choices, when present, are option labels the transport may render as a
// picker; the engine accepts the selected label back as a plain text reply.
type OutboundMessage struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices,omitempty"`
	Nav     *PageNav `json:"nav,omitempty"`
}

// TextMessage builds a plain outbound message.
func TextMessage(text string) OutboundMessage {
	return OutboundMessage{Text: text}
}
