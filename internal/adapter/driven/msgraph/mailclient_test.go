package msgraph_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/internal/adapter/driven/msgraph"
	"github.com/graphgate/graphgate/internal/domain/model"
)

func newTestMailClient(t *testing.T, handler http.Handler) *msgraph.MailClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return msgraph.NewMailClientWithHTTPClient(server.Client(), server.URL)
}

func TestListMessages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "5", r.URL.Query().Get("$top"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{
					"id":               "m1",
					"subject":          "Hello",
					"bodyPreview":      "Hi there",
					"isRead":           false,
					"importance":       "normal",
					"receivedDateTime": "2026-01-02T10:00:00Z",
					"from": map[string]any{
						"emailAddress": map[string]string{"address": "sender@b.com"},
					},
				},
			},
		})
	})

	client := newTestMailClient(t, mux)

	messages, err := client.ListMessages(context.Background(), "tok", "", 5)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "Hello", messages[0].Subject)
	assert.Equal(t, "sender@b.com", messages[0].From)
	assert.False(t, messages[0].IsRead)
	assert.Equal(t, 2026, messages[0].ReceivedAt.Year())
}

func TestListMessages_Folder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me/mailFolders/inbox/messages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"value": []map[string]any{}})
	})

	client := newTestMailClient(t, mux)

	messages, err := client.ListMessages(context.Background(), "tok", "inbox", 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestGetMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "m1",
			"subject": "Hello",
		})
	})

	client := newTestMailClient(t, mux)

	msg, err := client.GetMessage(context.Background(), "tok", "m1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg.Subject)
}

func TestSendMessage(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /me/sendMail", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusAccepted)
	})

	client := newTestMailClient(t, mux)

	err := client.SendMessage(context.Background(), "tok", model.OutgoingMessage{
		To:      []string{"to@b.com"},
		Subject: "Hi",
		Body:    "Body text",
	})
	require.NoError(t, err)

	message := captured["message"].(map[string]any)
	assert.Equal(t, "Hi", message["subject"])
	body := message["body"].(map[string]any)
	assert.Equal(t, "Text", body["contentType"])
	recipients := message["toRecipients"].([]any)
	require.Len(t, recipients, 1)
	assert.Equal(t, true, captured["saveToSentItems"])
}

func TestCreateDraft(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "d1",
			"subject": "Quarterly numbers",
			"isDraft": true,
		})
	})

	client := newTestMailClient(t, mux)

	draft, err := client.CreateDraft(context.Background(), "tok", model.OutgoingMessage{
		To:         []string{"to@b.com"},
		Bcc:        []string{"audit@b.com"},
		Subject:    "Quarterly numbers",
		Body:       "Draft body",
		Importance: "high",
	})
	require.NoError(t, err)
	assert.Equal(t, "d1", draft.ID)
	assert.Equal(t, "Quarterly numbers", draft.Subject)

	assert.Equal(t, "Quarterly numbers", captured["subject"])
	assert.Equal(t, "high", captured["importance"])
	bcc := captured["bccRecipients"].([]any)
	require.Len(t, bcc, 1)
	addr := bcc[0].(map[string]any)["emailAddress"].(map[string]any)
	assert.Equal(t, "audit@b.com", addr["address"])
}

func TestUpdateMessage(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /me/messages/d1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	})

	client := newTestMailClient(t, mux)

	err := client.UpdateMessage(context.Background(), "tok", "d1", model.MessageUpdate{
		Subject: "Revised",
		Body:    "New body",
	})
	require.NoError(t, err)

	assert.Equal(t, "Revised", captured["subject"])
	body := captured["body"].(map[string]any)
	assert.Equal(t, "New body", body["content"])
	assert.Equal(t, "Text", body["contentType"])
}

func TestAddAttachment(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /me/messages/d1/attachments", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("{}"))
	})

	client := newTestMailClient(t, mux)

	err := client.AddAttachment(context.Background(), "tok", "d1", model.Attachment{
		Name:    "report.txt",
		Content: []byte("hello"),
	})
	require.NoError(t, err)

	assert.Equal(t, "#microsoft.graph.fileAttachment", captured["@odata.type"])
	assert.Equal(t, "report.txt", captured["name"])
	assert.Equal(t, "aGVsbG8=", captured["contentBytes"])
}

func TestSendDraft(t *testing.T) {
	var called bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /me/messages/d1/send", func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	})

	client := newTestMailClient(t, mux)

	require.NoError(t, client.SendDraft(context.Background(), "tok", "d1"))
	assert.True(t, called)
}

func TestMarkRead(t *testing.T) {
	var captured map[string]bool
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	})

	client := newTestMailClient(t, mux)

	require.NoError(t, client.MarkRead(context.Background(), "tok", "m1", true))
	assert.True(t, captured["isRead"])
}

func TestDeleteMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestMailClient(t, mux)

	assert.NoError(t, client.DeleteMessage(context.Background(), "tok", "m1"))
}

func TestListFolders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me/mailFolders", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{"id": "f1", "displayName": "Inbox", "unreadItemCount": 3, "totalItemCount": 10},
			},
		})
	})

	client := newTestMailClient(t, mux)

	folders, err := client.ListFolders(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "Inbox", folders[0].DisplayName)
	assert.Equal(t, 3, folders[0].UnreadCount)
}

func TestExpiredTokenMapsToUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newTestMailClient(t, mux)

	_, err := client.ListMessages(context.Background(), "stale", "", 10)
	assert.ErrorIs(t, err, msgraph.ErrUnauthorized)
}
