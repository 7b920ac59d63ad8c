package blob

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mahaj/supportdesk/pkg/model"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

var keyPattern = regexp.MustCompile(`^[0-9a-f-]{36}$`)

// FSStore keeps each blob as <dir>/<key> with a <key>.json metadata sidecar.
// A claimed blob also has an empty <key>.claim marker, created exclusively.
type FSStore struct {
	dir     string
	maxSize int64
}

func NewFSStore(dir string, maxSize int64) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "fsStore.New.MkdirAll")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &FSStore{dir: dir, maxSize: maxSize}, nil
}

// record is the sidecar content.
type record struct {
	model.Attachment
	Owner Owner `json:"owner"`
}

func (s *FSStore) MaxSize() int64 { return s.maxSize }

func (s *FSStore) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", appErrors.ErrAttachmentNotFound
	}
	return filepath.Join(s.dir, key), nil
}

func (s *FSStore) Put(ctx context.Context, owner Owner, filename, mediaType string, r io.Reader) (*model.Attachment, error) {
	if err := ValidateType(mediaType); err != nil {
		return nil, err
	}
	key := uuid.NewString()
	p := filepath.Join(s.dir, key)

	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, errors.Wrap(err, "fsStore.Put.Create")
	}
	// Read one byte past the limit so oversized uploads are detected.
	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(p)
		return nil, errors.Wrap(err, "fsStore.Put.Copy")
	}
	if err := ValidateSize(n, s.maxSize); err != nil {
		_ = os.Remove(p)
		return nil, err
	}

	att := &model.Attachment{Key: key, MediaType: mediaType, Filename: filepath.Base(filename), Size: n}
	meta, err := json.Marshal(record{Attachment: *att, Owner: owner})
	if err == nil {
		err = os.WriteFile(p+".json", meta, 0o640)
	}
	if err != nil {
		_ = os.Remove(p)
		return nil, errors.Wrap(err, "fsStore.Put.Meta")
	}
	return att, nil
}

func (s *FSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, appErrors.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "fsStore.Open")
	}
	return f, nil
}

func (s *FSStore) Stat(ctx context.Context, key string) (*model.Attachment, error) {
	rec, _, err := s.record(key)
	if err != nil {
		return nil, err
	}
	return &rec.Attachment, nil
}

func (s *FSStore) record(key string) (*record, string, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, "", err
	}
	raw, err := os.ReadFile(p + ".json")
	if os.IsNotExist(err) {
		return nil, "", appErrors.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "fsStore.Stat.Read")
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, "", errors.Wrap(err, "fsStore.Stat.Decode")
	}
	return &rec, p, nil
}

// Claim answers not found for another owner's upload, so a key reveals
// nothing outside its conversation.
func (s *FSStore) Claim(ctx context.Context, key string, owner Owner) (*model.Attachment, error) {
	rec, p, err := s.record(key)
	if err != nil {
		return nil, err
	}
	if rec.Owner != owner {
		return nil, appErrors.ErrAttachmentNotFound
	}
	f, err := os.OpenFile(p+".claim", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if os.IsExist(err) {
		return nil, appErrors.ErrAttachmentClaimed
	}
	if err != nil {
		return nil, errors.Wrap(err, "fsStore.Claim")
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "fsStore.Claim.Close")
	}
	return &rec.Attachment, nil
}

func (s *FSStore) Release(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p + ".claim"); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "fsStore.Release")
	}
	return nil
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	for _, name := range []string{p, p + ".json", p + ".claim"} {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "fsStore.Delete")
		}
	}
	return nil
}
