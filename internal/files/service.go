package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/angelmondragon/miyf-books/pkg/drive"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
)

const (
	// DefaultMaxBytes is the upload cap when none is configured.
	DefaultMaxBytes int64 = 10 << 20

	suffixLength  = 6
	unlinkedLabel = "unlinked"
)

type driveClient interface {
	Upload(ctx context.Context, name, mimeType string, body io.Reader) (drive.File, error)
	Share(ctx context.Context, fileID string) error
	Get(ctx context.Context, fileID string) (drive.File, error)
	List(ctx context.Context) ([]drive.File, error)
	Rename(ctx context.Context, fileID, name string) (drive.File, error)
	Delete(ctx context.Context, fileID string) error
}

// UploadInput describes one receipt file.
type UploadInput struct {
	TransactionKey string
	FileName       string
	// Size is the client declared length; -1 when unknown.
	Size    int64
	Content io.Reader
}

// Service manages receipt files in the Drive folder.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (drive.File, error)
	Check(ctx context.Context, fileID string) (drive.File, error)
	List(ctx context.Context) ([]drive.File, error)
	Rename(ctx context.Context, fileID, name string) (drive.File, error)
	Delete(ctx context.Context, fileID string) error
	MaxBytes() int64
}

type service struct {
	drive    driveClient
	maxBytes int64
	logg     *logger.Logger
	now      func() time.Time
	suffix   func() (string, error)
}

func NewService(client driveClient, maxBytes int64, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "drive client required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		drive:    client,
		maxBytes: maxBytes,
		logg:     logg,
		now:      time.Now,
		suffix:   func() (string, error) { return rowstore.RandomToken(suffixLength) },
	}, nil
}

func (s *service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates size and sniffed type before touching Drive, stores the file
// under a collision resistant name and shares it with anyone holding the link.
func (s *service) Upload(ctx context.Context, input UploadInput) (drive.File, error) {
	if input.Content == nil {
		return drive.File{}, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	if input.Size > s.maxBytes {
		return drive.File{}, s.tooLarge(input.Size)
	}
	data, err := io.ReadAll(io.LimitReader(input.Content, s.maxBytes+1))
	if err != nil {
		return drive.File{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if int64(len(data)) > s.maxBytes {
		return drive.File{}, s.tooLarge(int64(len(data)))
	}
	if len(data) == 0 {
		return drive.File{}, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}

	mimeType, detected, ok := detectAllowed(data)
	if !ok {
		return drive.File{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported file type").
			WithDetails(map[string]any{"mimeType": mimeType, "allowed": humanReadableTypes()})
	}

	name, err := s.driveName(input.TransactionKey, input.FileName, detected.Extension())
	if err != nil {
		return drive.File{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate file name")
	}

	file, err := s.drive.Upload(ctx, name, mimeType, bytes.NewReader(data))
	if err != nil {
		return drive.File{}, pkgerrors.Upstream(err, "upload to drive")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"file_id": file.ID, "file_name": file.Name})

	if err := s.drive.Share(ctx, file.ID); err != nil {
		if delErr := s.drive.Delete(context.WithoutCancel(ctx), file.ID); delErr != nil {
			s.logg.Error(logCtx, "failed to remove unshared upload", delErr)
		}
		return drive.File{}, pkgerrors.Upstream(err, "share drive file")
	}
	s.logg.Info(logCtx, "receipt file uploaded")
	return file, nil
}

func (s *service) Check(ctx context.Context, fileID string) (drive.File, error) {
	fileID, err := requireID(fileID)
	if err != nil {
		return drive.File{}, err
	}
	file, err := s.drive.Get(ctx, fileID)
	if err != nil {
		return drive.File{}, translate(err, "check drive file")
	}
	return file, nil
}

func (s *service) List(ctx context.Context) ([]drive.File, error) {
	files, err := s.drive.List(ctx)
	if err != nil {
		return nil, translate(err, "list drive files")
	}
	if files == nil {
		files = []drive.File{}
	}
	return files, nil
}

func (s *service) Rename(ctx context.Context, fileID, name string) (drive.File, error) {
	fileID, err := requireID(fileID)
	if err != nil {
		return drive.File{}, err
	}
	if strings.TrimSpace(name) == "" {
		return drive.File{}, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	file, err := s.drive.Rename(ctx, fileID, sanitizeName(name, ""))
	if err != nil {
		return drive.File{}, translate(err, "rename drive file")
	}
	return file, nil
}

func (s *service) Delete(ctx context.Context, fileID string) error {
	fileID, err := requireID(fileID)
	if err != nil {
		return err
	}
	if err := s.drive.Delete(ctx, fileID); err != nil {
		return translate(err, "delete drive file")
	}
	s.logg.Info(s.logg.WithField(ctx, "file_id", fileID), "drive file deleted")
	return nil
}

// driveName builds {transactionKey}_{unixMillis}_{random6}_{sanitizedName}.
func (s *service) driveName(transactionKey, original, ext string) (string, error) {
	suffix, err := s.suffix()
	if err != nil {
		return "", err
	}
	prefix := unlinkedLabel
	if strings.TrimSpace(transactionKey) != "" {
		prefix = sanitizeName(transactionKey, "")
	}
	return fmt.Sprintf("%s_%d_%s_%s", prefix, s.now().UnixMilli(), suffix, sanitizeName(original, ext)), nil
}

func (s *service) tooLarge(size int64) error {
	return pkgerrors.New(pkgerrors.CodeTooLarge, fmt.Sprintf("file exceeds %d MB", s.maxBytes>>20)).
		WithDetails(map[string]any{"maxBytes": s.maxBytes, "size": size})
}

func requireID(fileID string) (string, error) {
	clean := strings.TrimSpace(fileID)
	if clean == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "file id is required")
	}
	return clean, nil
}

func translate(err error, action string) error {
	if errors.Is(err, drive.ErrNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "file not found")
	}
	return pkgerrors.Upstream(err, action)
}
