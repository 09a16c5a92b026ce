package httpdto

// SendMessageRequest is used for POST /api/messages
type SendMessageRequest struct {
	ConversationID string                 `json:"conversation_id" binding:"required"`
	Content        string                 `json:"content,omitempty"`
	Type           string                 `json:"type,omitempty"`
	FileURL        *string                `json:"file_url,omitempty"`
	FileName       *string                `json:"file_name,omitempty"`
	FileSize       *int64                 `json:"file_size,omitempty"`
	MimeType       *string                `json:"mime_type,omitempty"`
	ReplyToID      *string                `json:"reply_to_id,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EditMessageRequest is used for PUT /api/messages/:id
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// BulkReadRequest is used for PATCH /api/messages/bulk/read
type BulkReadRequest struct {
	MessageIDs []string `json:"message_ids" binding:"required"`
}
