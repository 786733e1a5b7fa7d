package conversation

// Request is the outbound conversation turn. Stream is always sent as true.
type Request struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
	ApplicationID  string `json:"applicationId"`
	Stream         bool   `json:"stream"`
}
