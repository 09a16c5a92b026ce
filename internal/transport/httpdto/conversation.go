package httpdto

// CreateConversationRequest is used for POST /api/conversations
type CreateConversationRequest struct {
	Type           string                 `json:"type,omitempty"`
	Purpose        string                 `json:"purpose" binding:"required"`
	ParticipantIDs []string               `json:"participant_ids" binding:"required"`
	Name           *string                `json:"name,omitempty"`
	Settings       map[string]interface{} `json:"settings,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// UpdateConversationRequest is used for PUT /api/conversations/:id
type UpdateConversationRequest struct {
	Name     *string                `json:"name,omitempty"`
	Settings map[string]interface{} `json:"settings,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AddParticipantsRequest is used for POST /api/conversations/:id/participants
type AddParticipantsRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
}

// TypingRequest is used for POST /api/conversations/:id/typing
type TypingRequest struct {
	Started bool `json:"started"`
}
