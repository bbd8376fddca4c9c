package queue

const TypeKeyEvent = "keys:event"

type KeyEventPayload struct {
	APIKeyID string            `json:"api_key_id"`
	UserID   string            `json:"user_id"`
	Action   string            `json:"action"`
	Detail   map[string]string `json:"detail,omitempty"`
}
