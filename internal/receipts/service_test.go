package receipts

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/miyf-books/internal/auditlog"
	"github.com/angelmondragon/miyf-books/internal/files"
	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/internal/transactions"
	"github.com/angelmondragon/miyf-books/pkg/drive"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/angelmondragon/miyf-books/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin  = types.Actor{Email: "admin@example.com", Role: enums.RoleAdmin}
	alice  = types.Actor{Email: "alice@example.com", Role: enums.RoleBasicUser}
	bob    = types.Actor{Email: "bob@example.com", Role: enums.RoleBasicUser}
	viewer = types.Actor{Email: "viewer@example.com", Role: enums.Role("Guest")}
)

type fakeTransactions map[string]bool

func (f fakeTransactions) Get(_ context.Context, key string) (rowstore.Row[transactions.Record], error) {
	if !f[key] {
		return rowstore.Row[transactions.Record]{}, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return rowstore.Row[transactions.Record]{Record: transactions.Record{Key: key}}, nil
}

type fakeFiles struct {
	uploads   []files.UploadInput
	deleted   []string
	uploadErr error
	deleteErr error
}

func (f *fakeFiles) Upload(_ context.Context, input files.UploadInput) (drive.File, error) {
	if f.uploadErr != nil {
		return drive.File{}, f.uploadErr
	}
	f.uploads = append(f.uploads, input)
	id := "file-" + input.TransactionKey
	return drive.File{
		ID:          id,
		Name:        input.TransactionKey + "_1_abc123_" + input.FileName,
		MimeType:    "application/pdf",
		ViewURL:     drive.ViewURL(id),
		DownloadURL: drive.DownloadURL(id),
	}, nil
}

func (f *fakeFiles) Delete(_ context.Context, fileID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, fileID)
	return nil
}

type recordingAudit struct {
	entries []auditlog.Entry
}

func (r *recordingAudit) Record(_ context.Context, entry auditlog.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

// failingBackend refuses appends so metadata writes fail after the upload.
type failingBackend struct {
	*rowstore.MemoryBackend
}

func (failingBackend) AppendRow(context.Context, string, []string) (int, error) {
	return 0, errors.New("quota exceeded")
}

// stuckRowsBackend refuses row deletes.
type stuckRowsBackend struct {
	*rowstore.MemoryBackend
}

func (stuckRowsBackend) DeleteRow(context.Context, string, int) error {
	return errors.New("protected range")
}

type fixture struct {
	svc     *service
	backend *rowstore.MemoryBackend
	files   *fakeFiles
	audit   *recordingAudit
}

func newFixture(t *testing.T, backend rowstore.Backend) fixture {
	t.Helper()
	mem := rowstore.NewMemoryBackend()
	if backend == nil {
		backend = mem
	}
	store, err := NewRepository(repo.NewBase(backend))
	require.NoError(t, err)
	fileSvc := &fakeFiles{}
	audit := &recordingAudit{}
	svc, err := NewService(store, fakeTransactions{"tx000001": true}, fileSvc, audit, nil)
	require.NoError(t, err)
	s := svc.(*service)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	n := 0
	s.newKey = func() string {
		n++
		return "rcpt-" + string(rune('0'+n))
	}
	return fixture{svc: s, backend: mem, files: fileSvc, audit: audit}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, fakeTransactions{}, &fakeFiles{}, &recordingAudit{}, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	store, err := NewRepository(repo.NewBase(rowstore.NewMemoryBackend()))
	require.NoError(t, err)
	_, err = NewService(store, nil, &fakeFiles{}, &recordingAudit{}, nil)
	assert.Error(t, err)
	_, err = NewService(store, fakeTransactions{}, nil, &recordingAudit{}, nil)
	assert.Error(t, err)
	_, err = NewService(store, fakeTransactions{}, &fakeFiles{}, nil, nil)
	assert.Error(t, err)
}

func TestListOfMissingSheetIsEmpty(t *testing.T) {
	f := newFixture(t, nil)
	got, err := f.svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCreateValidatesTransaction(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, alice, CreateInput{TransactionKey: "missing1", FileName: "a.pdf", FileURL: "https://x", FileID: "id"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, alice, CreateInput{TransactionKey: "tx000001"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Contains(t, details, "fileId")

	_, err = f.svc.Create(ctx, viewer, CreateInput{})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestCreateAndListByTransaction(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.backend.Seed(SheetName, schema.Header,
		[]string{"old-1", "tx000002", "other.pdf", "https://v", "fid-0", "", "bob@example.com", "", ""},
	)

	got, err := f.svc.Create(ctx, alice, CreateInput{
		TransactionKey: " tx000001 ",
		FileName:       "invoice.pdf",
		FileURL:        "https://drive.google.com/file/d/fid-1/view",
		FileID:         "fid-1",
		DisplayName:    "March invoice",
	})
	require.NoError(t, err)
	assert.Equal(t, "rcpt-1", got.ReceiptKey)
	assert.Equal(t, "tx000001", got.TransactionKey)
	assert.Equal(t, "2026-03-01T09:30:00Z", got.UploadDate)
	assert.Equal(t, alice.Email, got.UploadBy)

	all, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	linked, err := f.svc.List(ctx, "tx000001")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "March invoice", linked[0].DisplayName)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Attach Receipt", f.audit.entries[0].Action)
	assert.Equal(t, "tx000001", f.audit.entries[0].Object)
}

func TestUpdateDisplayNameOwnership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, alice, CreateInput{TransactionKey: "tx000001", FileName: "a.pdf", FileURL: "https://x", FileID: "fid-1"})
	require.NoError(t, err)

	_, err = f.svc.UpdateDisplayName(ctx, bob, DisplayNameInput{ReceiptKey: created.ReceiptKey, DisplayName: "mine now"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	renamed, err := f.svc.UpdateDisplayName(ctx, alice, DisplayNameInput{ReceiptKey: created.ReceiptKey, DisplayName: " Offering slip "})
	require.NoError(t, err)
	assert.Equal(t, "Offering slip", renamed.DisplayName)
	assert.Equal(t, "a.pdf", renamed.FileName)

	_, err = f.svc.UpdateDisplayName(ctx, admin, DisplayNameInput{ReceiptKey: "nope", DisplayName: "x"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.UpdateDisplayName(ctx, admin, DisplayNameInput{ReceiptKey: created.ReceiptKey})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	last := f.audit.entries[len(f.audit.entries)-1]
	assert.Equal(t, "Rename Receipt", last.Action)
	assert.Equal(t, "Offering slip", last.New)
}

func TestDeleteRemovesRowThenFile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, alice, CreateInput{TransactionKey: "tx000001", FileName: "a.pdf", FileURL: "https://x", FileID: "fid-1"})
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, bob, created.ReceiptKey)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
	assert.Empty(t, f.files.deleted)

	removed, err := f.svc.Delete(ctx, admin, created.ReceiptKey)
	require.NoError(t, err)
	assert.Equal(t, "fid-1", removed.FileID)
	assert.Equal(t, []string{"fid-1"}, f.files.deleted)

	left, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = f.svc.Delete(ctx, admin, created.ReceiptKey)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteToleratesMissingDriveFile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, alice, CreateInput{TransactionKey: "tx000001", FileName: "a.pdf", FileURL: "https://x", FileID: "gone"})
	require.NoError(t, err)

	f.files.deleteErr = pkgerrors.New(pkgerrors.CodeNotFound, "file not found")
	_, err = f.svc.Delete(ctx, alice, created.ReceiptKey)
	require.NoError(t, err)
}

func TestDeleteKeepsRowRemovalWhenDriveFails(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, alice, CreateInput{TransactionKey: "tx000001", FileName: "b.pdf", FileURL: "https://x", FileID: "fid-2"})
	require.NoError(t, err)

	f.files.deleteErr = pkgerrors.Upstream(errors.New("backend error"), "delete drive file")
	removed, err := f.svc.Delete(ctx, alice, created.ReceiptKey)
	require.NoError(t, err)
	assert.Equal(t, "fid-2", removed.FileID)

	left, err := f.svc.List(ctx, "tx000001")
	require.NoError(t, err)
	assert.Empty(t, left)
	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, enums.AuditActionDeleteReceipt.String(), f.audit.entries[1].Action)
}

func TestDeleteLeavesDriveFileWhenRowDeleteFails(t *testing.T) {
	mem := rowstore.NewMemoryBackend()
	f := newFixture(t, stuckRowsBackend{mem})
	ctx := context.Background()
	created, err := f.svc.Create(ctx, alice, CreateInput{TransactionKey: "tx000001", FileName: "c.pdf", FileURL: "https://x", FileID: "fid-3"})
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, alice, created.ReceiptKey)
	require.Error(t, err)
	assert.Empty(t, f.files.deleted, "a receipt row must never point at a deleted file")

	still, err := f.svc.List(ctx, "tx000001")
	require.NoError(t, err)
	require.Len(t, still, 1)
	assert.Equal(t, "fid-3", still[0].FileID)
}

func TestUploadLinkedAppendsMetadata(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.svc.Upload(ctx, alice, UploadInput{
		TransactionKey: "tx000001",
		FileName:       "slip.pdf",
		Size:           4,
		Content:        strings.NewReader("%PDF"),
		Description:    "offering",
	})
	require.NoError(t, err)
	assert.Equal(t, "file-tx000001", result.FileID)
	assert.Equal(t, "https://drive.google.com/uc?export=download&id=file-tx000001", result.DownloadURL)
	require.NotNil(t, result.Receipt)
	assert.Equal(t, "slip.pdf", result.Receipt.DisplayName)
	assert.Equal(t, result.ViewURL, result.Receipt.FileURL)
	assert.Equal(t, "offering", result.Receipt.Description)
}

func TestUploadUnlinkedWritesNoRow(t *testing.T) {
	f := newFixture(t, nil)
	result, err := f.svc.Upload(context.Background(), alice, UploadInput{FileName: "slip.pdf", Size: -1, Content: strings.NewReader("%PDF")})
	require.NoError(t, err)
	assert.Nil(t, result.Receipt)
	all, err := f.svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUploadRejectsUnknownTransactionBeforeDrive(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Upload(context.Background(), alice, UploadInput{TransactionKey: "missing1", Content: strings.NewReader("%PDF")})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, f.files.uploads)
}

func TestUploadPassesFileErrorsThrough(t *testing.T) {
	f := newFixture(t, nil)
	f.files.uploadErr = pkgerrors.New(pkgerrors.CodeTooLarge, "file exceeds 10 MB")
	_, err := f.svc.Upload(context.Background(), alice, UploadInput{Content: io.LimitReader(strings.NewReader(""), 0)})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeTooLarge))
}

func TestUploadFailedAppendDeletesDriveFile(t *testing.T) {
	f := newFixture(t, failingBackend{rowstore.NewMemoryBackend()})

	_, err := f.svc.Upload(context.Background(), alice, UploadInput{TransactionKey: "tx000001", FileName: "slip.pdf", Content: strings.NewReader("%PDF")})
	require.Error(t, err)
	assert.Equal(t, []string{"file-tx000001"}, f.files.deleted)
	assert.Empty(t, f.audit.entries)
}
