package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/graphgate/graphgate/internal/application"
	"github.com/graphgate/graphgate/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
	// Reauth is set when the stored refresh token was rejected upstream and
	// the user must re-run the authorization flow.
	Reauth bool `json:"reauth_required,omitempty"`
}

// AuthorizeURLResponse is the JSON representation of the authorize URL endpoint.
type AuthorizeURLResponse struct {
	URL string `json:"url"`
}

// CallbackResponse is the JSON representation of a completed authorization flow.
type CallbackResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// StatusResponse is the JSON representation of the auth status endpoint.
type StatusResponse struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	TokenExpiresAt string `json:"token_expires_at"`
	Active         bool   `json:"active"`
}

// APIKeyResponse is the JSON representation of an API key. Key is populated
// only on creation; listings carry only the masked form.
type APIKeyResponse struct {
	Key       string `json:"key,omitempty"`
	MaskedKey string `json:"masked_key,omitempty"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	LastUsed  string `json:"last_used_at,omitempty"`
	IsActive  bool   `json:"is_active"`
}

// CreateKeyRequest is the JSON body for the create API key endpoint.
type CreateKeyRequest struct {
	Name string `json:"name"`
}

// MessageResponse is the JSON representation of a mail message.
type MessageResponse struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	From        string `json:"from"`
	BodyPreview string `json:"body_preview"`
	IsRead      bool   `json:"is_read"`
	Importance  string `json:"importance"`
	ReceivedAt  string `json:"received_at"`
}

// SendMessageRequest is the JSON body for the send message and create draft
// endpoints.
type SendMessageRequest struct {
	To          []string `json:"to"`
	Cc          []string `json:"cc,omitempty"`
	Bcc         []string `json:"bcc,omitempty"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	ContentType string   `json:"content_type,omitempty"`
	Importance  string   `json:"importance,omitempty"`
}

// UpdateMessageRequest is the JSON body for the update message endpoint.
// Omitted fields are left unchanged.
type UpdateMessageRequest struct {
	Subject     string `json:"subject,omitempty"`
	Body        string `json:"body,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// AddAttachmentRequest is the JSON body for the add attachment endpoint.
// ContentBytes is standard base64.
type AddAttachmentRequest struct {
	Name         string `json:"name"`
	ContentBytes string `json:"content_bytes"`
}

// AttachmentResponse is the JSON representation of a stored attachment.
type AttachmentResponse struct {
	Name string `json:"name"`
}

// MarkReadRequest is the JSON body for the mark read endpoint.
type MarkReadRequest struct {
	Read bool `json:"read"`
}

// SetImportanceRequest is the JSON body for the set importance endpoint.
type SetImportanceRequest struct {
	Importance string `json:"importance"`
}

// FolderResponse is the JSON representation of a mail folder.
type FolderResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	UnreadCount int    `json:"unread_count"`
	TotalCount  int    `json:"total_count"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toStatusResponse(s *application.Status) StatusResponse {
	return StatusResponse{
		UserID:         s.UserID,
		Email:          s.Email,
		TokenExpiresAt: s.TokenExpiresAt.UTC().Format(time.RFC3339),
		Active:         s.Active,
	}
}

// toAPIKeyResponse converts a domain APIKey to its JSON representation.
// Whichever of Key and MaskedKey the store populated flows through; the
// empty one is omitted.
func toAPIKeyResponse(key model.APIKey) APIKeyResponse {
	resp := APIKeyResponse{
		Key:       key.Key,
		MaskedKey: key.MaskedKey,
		Name:      key.Name,
		CreatedAt: key.CreatedAt.UTC().Format(time.RFC3339),
		IsActive:  key.IsActive,
	}
	if !key.LastUsedAt.IsZero() {
		resp.LastUsed = key.LastUsedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toMessageResponse(msg model.Message) MessageResponse {
	return MessageResponse{
		ID:          msg.ID,
		Subject:     msg.Subject,
		From:        msg.From,
		BodyPreview: msg.BodyPreview,
		IsRead:      msg.IsRead,
		Importance:  msg.Importance,
		ReceivedAt:  msg.ReceivedAt.UTC().Format(time.RFC3339),
	}
}

func toFolderResponse(folder model.MailFolder) FolderResponse {
	return FolderResponse{
		ID:          folder.ID,
		DisplayName: folder.DisplayName,
		UnreadCount: folder.UnreadCount,
		TotalCount:  folder.TotalCount,
	}
}
