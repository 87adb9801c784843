package httphandler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/graphgate/graphgate/internal/adapter/driven/msgraph"
	"github.com/graphgate/graphgate/internal/application"
	"github.com/graphgate/graphgate/internal/domain/model"
	"github.com/graphgate/graphgate/internal/domain/port/driven"
)

// stateCookieTTL bounds how long an authorization flow may stay in flight
// between the redirect and the callback.
const stateCookieTTL = 10 * time.Minute

// defaultMessageTop is the page size for message listings when the caller
// does not specify one.
const defaultMessageTop = 25

// maxMessageTop caps the page size; Graph rejects larger values anyway.
const maxMessageTop = 100

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	exchangeSvc *application.ExchangeService
	keySvc      *application.KeyService
	resolver    *application.Resolver
	mail        driven.MailClient
	redirectURI string
	sessionTTL  time.Duration
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	exchangeSvc *application.ExchangeService,
	keySvc *application.KeyService,
	resolver *application.Resolver,
	mail driven.MailClient,
	redirectURI string,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		exchangeSvc: exchangeSvc,
		keySvc:      keySvc,
		resolver:    resolver,
		mail:        mail,
		redirectURI: redirectURI,
		sessionTTL:  sessionTTL,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/oauth/authorize-url", h.AuthorizeURL)
	mux.HandleFunc("GET /api/v1/oauth/callback", h.Callback)
	mux.HandleFunc("GET /api/v1/auth/status", h.AuthStatus)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)

	mux.HandleFunc("POST /api/v1/keys", h.CreateKey)
	mux.HandleFunc("GET /api/v1/keys", h.ListKeys)
	mux.HandleFunc("DELETE /api/v1/keys/{key}", h.RevokeKey)

	mux.HandleFunc("GET /api/v1/messages", h.ListMessages)
	mux.HandleFunc("POST /api/v1/messages", h.SendMessage)
	mux.HandleFunc("GET /api/v1/messages/{id}", h.GetMessage)
	mux.HandleFunc("PATCH /api/v1/messages/{id}", h.UpdateMessage)
	mux.HandleFunc("POST /api/v1/messages/{id}/read", h.MarkRead)
	mux.HandleFunc("POST /api/v1/messages/{id}/importance", h.SetImportance)
	mux.HandleFunc("DELETE /api/v1/messages/{id}", h.DeleteMessage)
	mux.HandleFunc("POST /api/v1/drafts", h.CreateDraft)
	mux.HandleFunc("POST /api/v1/drafts/{id}/attachments", h.AddAttachment)
	mux.HandleFunc("POST /api/v1/drafts/{id}/send", h.SendDraft)
	mux.HandleFunc("GET /api/v1/folders", h.ListFolders)

	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// writeDomainError maps a domain error to its HTTP status. Anything that
// matches no sentinel is a storage or transport failure and stays opaque.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, application.ErrReauthRequired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:  "authorization expired, re-run the authorization flow",
			Reauth: true,
		})
	case errors.Is(err, application.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, application.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, driven.ErrNotFound), errors.Is(err, msgraph.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, msgraph.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden by mail provider")
	case errors.Is(err, msgraph.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "mail provider throttled the request")
	case errors.Is(err, driven.ErrProviderRejected), errors.Is(err, msgraph.ErrUnauthorized), errors.Is(err, msgraph.ErrServer):
		writeError(w, http.StatusBadGateway, "upstream provider error")
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// AuthorizeURL mints a state nonce, pins it in a short-lived cookie, and
// returns the provider authorization URL for the browser to visit.
func (h *Handler) AuthorizeURL(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/v1/oauth",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, AuthorizeURLResponse{URL: h.exchangeSvc.AuthCodeURL(state)})
}

// Callback completes the authorization flow: it checks the state nonce
// against the pinned cookie, redeems the code, and sets the session cookie.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if provErr := query.Get("error"); provErr != "" {
		writeError(w, http.StatusBadRequest, "authorization declined: "+provErr)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != query.Get("state") {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	clearCookie(w, stateCookieName, "/api/v1/oauth")

	result, err := h.exchangeSvc.ExchangeCode(r.Context(), code, h.redirectURI)
	if err != nil {
		h.logger.Warn("authorization code exchange failed", "error", err)
		h.writeDomainError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    result.SessionToken,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, CallbackResponse{
		UserID:      result.UserID,
		Email:       result.Email,
		DisplayName: result.DisplayName,
	})
}

// AuthStatus reports the authentication state behind the request's
// credential, session cookie or bearer key alike.
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	cred := credentialFromRequest(r)
	if cred == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	status, err := h.keySvc.StatusFor(r.Context(), cred)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(status))
}

// Logout revokes the session and clears the cookie. Always succeeds from the
// browser's point of view.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromRequest(r)
	if err := h.keySvc.Logout(r.Context(), token); err != nil {
		h.logger.Error("logout failed", "error", err)
	}
	clearCookie(w, sessionCookieName, "/")
	w.WriteHeader(http.StatusNoContent)
}

// CreateKey mints a new API key for the session's identity. The full key
// material appears in this response and nowhere else.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	key, err := h.keySvc.GenerateAPIKey(r.Context(), sessionTokenFromRequest(r), req.Name)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAPIKeyResponse(key))
}

// ListKeys returns the session identity's API keys with masked key material.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keySvc.ListAPIKeys(r.Context(), sessionTokenFromRequest(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := make([]APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		resp = append(resp, toAPIKeyResponse(key))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RevokeKey revokes one of the session identity's API keys.
func (h *Handler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	err := h.keySvc.RevokeAPIKey(r.Context(), sessionTokenFromRequest(r), r.PathValue("key"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// accessToken resolves the request's credential and returns a usable
// downstream token for the authenticated user.
func (h *Handler) accessToken(r *http.Request) (string, error) {
	user, err := h.resolver.Resolve(r.Context(), credentialFromRequest(r))
	if err != nil {
		return "", err
	}
	return h.resolver.AccessToken(r.Context(), user.UserID)
}

// ListMessages returns messages from the user's mailbox, optionally scoped
// to a folder.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	top := defaultMessageTop
	if raw := r.URL.Query().Get("top"); raw != "" {
		top, err = strconv.Atoi(raw)
		if err != nil || top < 1 || top > maxMessageTop {
			writeError(w, http.StatusBadRequest, "invalid top parameter")
			return
		}
	}

	msgs, err := h.mail.ListMessages(r.Context(), token, r.URL.Query().Get("folder"), top)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := make([]MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		resp = append(resp, toMessageResponse(msg))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetMessage returns a single message by ID.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	msg, err := h.mail.GetMessage(r.Context(), token, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(*msg))
}

// SendMessage sends a new mail message as the authenticated user.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.To) == 0 {
		writeError(w, http.StatusBadRequest, "at least one recipient is required")
		return
	}

	err = h.mail.SendMessage(r.Context(), token, outgoingMessage(req))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// CreateDraft saves an unsent message to the Drafts folder. Recipients are
// optional; drafts can be filled in and sent later.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft, err := h.mail.CreateDraft(r.Context(), token, outgoingMessage(req))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(*draft))
}

// UpdateMessage patches a message's subject and body.
func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req UpdateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subject == "" && req.Body == "" {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	err = h.mail.UpdateMessage(r.Context(), token, r.PathValue("id"), model.MessageUpdate{
		Subject:     req.Subject,
		Body:        req.Body,
		ContentType: req.ContentType,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddAttachment attaches a base64-encoded file to a draft message.
func (h *Handler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req AddAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.ContentBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "content_bytes is not valid base64")
		return
	}

	err = h.mail.AddAttachment(r.Context(), token, r.PathValue("id"), model.Attachment{
		Name:    req.Name,
		Content: content,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AttachmentResponse{Name: req.Name})
}

// SendDraft sends a previously created draft by ID.
func (h *Handler) SendDraft(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if err := h.mail.SendDraft(r.Context(), token, r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// outgoingMessage maps the request DTO to its domain form.
func outgoingMessage(req SendMessageRequest) model.OutgoingMessage {
	return model.OutgoingMessage{
		To:          req.To,
		Cc:          req.Cc,
		Bcc:         req.Bcc,
		Subject:     req.Subject,
		Body:        req.Body,
		ContentType: req.ContentType,
		Importance:  req.Importance,
	}
}

// MarkRead sets the read flag on a message.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.mail.MarkRead(r.Context(), token, r.PathValue("id"), req.Read); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetImportance sets the importance level on a message.
func (h *Handler) SetImportance(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req SetImportanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Importance {
	case "low", "normal", "high":
	default:
		writeError(w, http.StatusBadRequest, "importance must be low, normal, or high")
		return
	}

	if err := h.mail.SetImportance(r.Context(), token, r.PathValue("id"), req.Importance); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteMessage deletes a message.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if err := h.mail.DeleteMessage(r.Context(), token, r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListFolders returns the user's mail folders.
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	token, err := h.accessToken(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	folders, err := h.mail.ListFolders(r.Context(), token)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := make([]FolderResponse, 0, len(folders))
	for _, folder := range folders {
		resp = append(resp, toFolderResponse(folder))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple liveness response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// clearCookie expires the named cookie.
func clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
