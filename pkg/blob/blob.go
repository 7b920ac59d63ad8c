// Package blob stores attachment payloads. Messages only keep the returned
// reference; the payload lives here until its message is deleted.
package blob

import (
	"context"
	"io"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mahaj/supportdesk/pkg/model"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

// Owner is the caller and conversation an upload was made for. Only the
// same owner may attach it to a message.
type Owner struct {
	ConversationID int64      `json:"conversation_id"`
	Role           model.Role `json:"role"`
	Identity       string     `json:"identity"`
}

type Store interface {
	// Put stores r under a new key for owner and returns the reference.
	Put(ctx context.Context, owner Owner, filename, mediaType string, r io.Reader) (*model.Attachment, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (*model.Attachment, error)

	// Claim binds the blob to the message about to be appended. It fails
	// for another owner's upload and for a blob that is already claimed.
	Claim(ctx context.Context, key string, owner Owner) (*model.Attachment, error)
	// Release undoes a Claim whose append did not go through.
	Release(ctx context.Context, key string) error

	Delete(ctx context.Context, key string) error
}

// AllowedTypes is the fixed media type allow-list for attachments.
var AllowedTypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"image/gif":       {},
	"image/webp":      {},
	"application/pdf": {},
	"text/plain":      {},
}

const DefaultMaxSize = 10 * 1000 * 1000

// Validate checks an upload's media type and size.
func Validate(mediaType string, size int64, maxSize int64) error {
	if err := ValidateType(mediaType); err != nil {
		return err
	}
	return ValidateSize(size, maxSize)
}

func ValidateSize(size int64, maxSize int64) error {
	if size <= 0 {
		return appErrors.ErrAttachmentEmpty
	}
	if size > maxSize {
		return appErrors.ErrAttachmentTooLarge(humanize.Bytes(uint64(maxSize)))
	}
	return nil
}

// ValidateType checks mediaType against the allow-list.
func ValidateType(mediaType string) error {
	base, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return appErrors.ErrAttachmentType
	}
	if _, ok := AllowedTypes[strings.ToLower(base)]; !ok {
		return appErrors.ErrAttachmentType
	}
	return nil
}
