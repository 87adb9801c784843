package msgraph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/graphgate/graphgate/internal/domain/model"
	"github.com/graphgate/graphgate/internal/domain/port/driven"
)

// messageSelect limits list responses to the fields the façade maps.
const messageSelect = "id,subject,bodyPreview,from,isRead,importance,receivedDateTime"

// Compile-time interface satisfaction check.
var _ driven.MailClient = (*MailClient)(nil)

// MailClient implements the driven.MailClient port with plain Graph REST
// calls. The transport uses httpcache for ETag-based conditional request
// caching; Graph returns ETags on message and folder collections.
type MailClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewMailClient creates a MailClient against the production Graph endpoint.
func NewMailClient() *MailClient {
	return &MailClient{
		httpClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   30 * time.Second,
		},
		baseURL: graphBaseURL,
	}
}

// NewMailClientWithHTTPClient creates a MailClient with a custom http.Client
// and base URL. Intended for testing against an httptest server.
func NewMailClientWithHTTPClient(httpClient *http.Client, baseURL string) *MailClient {
	return &MailClient{httpClient: httpClient, baseURL: baseURL}
}

// graphMessage is the wire shape of a Graph mail message.
type graphMessage struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	BodyPreview string `json:"bodyPreview"`
	IsRead      bool   `json:"isRead"`
	Importance  string `json:"importance"`
	ReceivedAt  string `json:"receivedDateTime"`
	From        struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
}

func (m graphMessage) toModel() model.Message {
	msg := model.Message{
		ID:          m.ID,
		Subject:     m.Subject,
		From:        m.From.EmailAddress.Address,
		BodyPreview: m.BodyPreview,
		IsRead:      m.IsRead,
		Importance:  m.Importance,
	}
	if t, err := time.Parse(time.RFC3339, m.ReceivedAt); err == nil {
		msg.ReceivedAt = t
	}
	return msg
}

// ListMessages returns up to top messages, newest first. An empty folder
// lists the default message view; otherwise the named well-known folder or
// folder ID is used.
func (c *MailClient) ListMessages(ctx context.Context, accessToken, folder string, top int) ([]model.Message, error) {
	if top <= 0 {
		top = 10
	}

	path := "/me/messages"
	if folder != "" {
		path = "/me/mailFolders/" + url.PathEscape(folder) + "/messages"
	}
	query := url.Values{
		"$top":     {strconv.Itoa(top)},
		"$select":  {messageSelect},
		"$orderby": {"receivedDateTime DESC"},
	}

	var payload struct {
		Value []graphMessage `json:"value"`
	}
	if err := c.do(ctx, accessToken, http.MethodGet, path+"?"+query.Encode(), nil, &payload); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]model.Message, 0, len(payload.Value))
	for _, m := range payload.Value {
		messages = append(messages, m.toModel())
	}
	return messages, nil
}

// GetMessage retrieves a single message by ID.
func (c *MailClient) GetMessage(ctx context.Context, accessToken, messageID string) (*model.Message, error) {
	var payload graphMessage
	path := "/me/messages/" + url.PathEscape(messageID) + "?$select=" + messageSelect
	if err := c.do(ctx, accessToken, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	msg := payload.toModel()
	return &msg, nil
}

// graphRecipient is the Graph wire shape of a single recipient.
type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

func toGraphRecipient(addr string) graphRecipient {
	var r graphRecipient
	r.EmailAddress.Address = addr
	return r
}

// messagePayload builds the Graph message object shared by sendMail and
// draft creation.
func messagePayload(msg model.OutgoingMessage) map[string]any {
	contentType := msg.ContentType
	if contentType == "" {
		contentType = "Text"
	}

	payload := map[string]any{
		"subject": msg.Subject,
		"body": map[string]string{
			"contentType": contentType,
			"content":     msg.Body,
		},
		"toRecipients": mapSlice(msg.To, toGraphRecipient),
		"ccRecipients": mapSlice(msg.Cc, toGraphRecipient),
	}
	if len(msg.Bcc) > 0 {
		payload["bccRecipients"] = mapSlice(msg.Bcc, toGraphRecipient)
	}
	if msg.Importance != "" {
		payload["importance"] = msg.Importance
	}
	return payload
}

// SendMessage sends a mail message via Graph sendMail, saving a copy to the
// Sent Items folder.
func (c *MailClient) SendMessage(ctx context.Context, accessToken string, msg model.OutgoingMessage) error {
	body := map[string]any{
		"message":         messagePayload(msg),
		"saveToSentItems": true,
	}

	if err := c.do(ctx, accessToken, http.MethodPost, "/me/sendMail", body, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// CreateDraft saves an unsent message to the Drafts folder. Graph responds
// with the stored message, including the ID later used to update, attach
// to, or send the draft.
func (c *MailClient) CreateDraft(ctx context.Context, accessToken string, msg model.OutgoingMessage) (*model.Message, error) {
	var payload graphMessage
	if err := c.do(ctx, accessToken, http.MethodPost, "/me/messages", messagePayload(msg), &payload); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	draft := payload.toModel()
	return &draft, nil
}

// UpdateMessage patches a message's subject and body. Empty update fields
// are left unchanged on the message.
func (c *MailClient) UpdateMessage(ctx context.Context, accessToken, messageID string, update model.MessageUpdate) error {
	contentType := update.ContentType
	if contentType == "" {
		contentType = "Text"
	}

	patch := map[string]any{}
	if update.Subject != "" {
		patch["subject"] = update.Subject
	}
	if update.Body != "" {
		patch["body"] = map[string]string{
			"contentType": contentType,
			"content":     update.Body,
		}
	}

	path := "/me/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, accessToken, http.MethodPatch, path, patch, nil); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// AddAttachment attaches a file to a draft message.
func (c *MailClient) AddAttachment(ctx context.Context, accessToken, messageID string, att model.Attachment) error {
	body := map[string]any{
		"@odata.type":  "#microsoft.graph.fileAttachment",
		"name":         att.Name,
		"contentBytes": base64.StdEncoding.EncodeToString(att.Content),
	}

	path := "/me/messages/" + url.PathEscape(messageID) + "/attachments"
	if err := c.do(ctx, accessToken, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("add attachment: %w", err)
	}
	return nil
}

// SendDraft sends a previously created draft. Graph responds 202 with an
// empty body.
func (c *MailClient) SendDraft(ctx context.Context, accessToken, draftID string) error {
	path := "/me/messages/" + url.PathEscape(draftID) + "/send"
	if err := c.do(ctx, accessToken, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("send draft: %w", err)
	}
	return nil
}

// MarkRead sets the isRead flag on a message.
func (c *MailClient) MarkRead(ctx context.Context, accessToken, messageID string, read bool) error {
	path := "/me/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, accessToken, http.MethodPatch, path, map[string]bool{"isRead": read}, nil); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// SetImportance sets a message's importance ("low", "normal", "high").
func (c *MailClient) SetImportance(ctx context.Context, accessToken, messageID, importance string) error {
	path := "/me/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, accessToken, http.MethodPatch, path, map[string]string{"importance": importance}, nil); err != nil {
		return fmt.Errorf("set importance: %w", err)
	}
	return nil
}

// DeleteMessage moves a message to Deleted Items.
func (c *MailClient) DeleteMessage(ctx context.Context, accessToken, messageID string) error {
	path := "/me/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, accessToken, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ListFolders returns the user's mail folders.
func (c *MailClient) ListFolders(ctx context.Context, accessToken string) ([]model.MailFolder, error) {
	var payload struct {
		Value []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
			UnreadCount int    `json:"unreadItemCount"`
			TotalCount  int    `json:"totalItemCount"`
		} `json:"value"`
	}
	if err := c.do(ctx, accessToken, http.MethodGet, "/me/mailFolders", nil, &payload); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	folders := make([]model.MailFolder, 0, len(payload.Value))
	for _, f := range payload.Value {
		folders = append(folders, model.MailFolder{
			ID:          f.ID,
			DisplayName: f.DisplayName,
			UnreadCount: f.UnreadCount,
			TotalCount:  f.TotalCount,
		})
	}
	return folders, nil
}

// do performs one authenticated Graph request, encoding body as JSON when
// non-nil and decoding the response into out when non-nil.
func (c *MailClient) do(ctx context.Context, accessToken, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return wrapStatus(resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
