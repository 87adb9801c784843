package driven

import (
	"context"

	"github.com/graphgate/graphgate/internal/domain/model"
)

// MailClient defines the driven port for Microsoft Graph mail operations.
// Every call receives the resolved access token for the authenticated user;
// the client holds no per-user state.
type MailClient interface {
	// ListMessages returns up to top messages from the given folder.
	// An empty folder means the default inbox view.
	ListMessages(ctx context.Context, accessToken, folder string, top int) ([]model.Message, error)

	GetMessage(ctx context.Context, accessToken, messageID string) (*model.Message, error)

	SendMessage(ctx context.Context, accessToken string, msg model.OutgoingMessage) error

	// CreateDraft saves an unsent message to the Drafts folder and returns
	// it with its assigned ID.
	CreateDraft(ctx context.Context, accessToken string, msg model.OutgoingMessage) (*model.Message, error)

	// UpdateMessage patches a message's subject and body. Empty update
	// fields are left unchanged.
	UpdateMessage(ctx context.Context, accessToken, messageID string, update model.MessageUpdate) error

	// AddAttachment attaches a file to a draft message.
	AddAttachment(ctx context.Context, accessToken, messageID string, att model.Attachment) error

	// SendDraft sends a previously created draft by ID.
	SendDraft(ctx context.Context, accessToken, draftID string) error

	// MarkRead sets the isRead flag on a message.
	MarkRead(ctx context.Context, accessToken, messageID string, read bool) error

	// SetImportance sets message importance ("low", "normal", "high").
	SetImportance(ctx context.Context, accessToken, messageID, importance string) error

	DeleteMessage(ctx context.Context, accessToken, messageID string) error

	ListFolders(ctx context.Context, accessToken string) ([]model.MailFolder, error)
}
