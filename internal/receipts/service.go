package receipts

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/miyf-books/internal/auditlog"
	"github.com/angelmondragon/miyf-books/internal/files"
	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/internal/transactions"
	"github.com/angelmondragon/miyf-books/pkg/drive"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/angelmondragon/miyf-books/pkg/types"
	"github.com/google/uuid"
)

const entity = "receipt"

type transactionLookup interface {
	Get(ctx context.Context, key string) (rowstore.Row[transactions.Record], error)
}

type fileStore interface {
	Upload(ctx context.Context, input files.UploadInput) (drive.File, error)
	Delete(ctx context.Context, fileID string) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry auditlog.Entry) error
}

// Service manages receipt attachments.
type Service interface {
	List(ctx context.Context, transactionKey string) ([]Receipt, error)
	Create(ctx context.Context, actor types.Actor, input CreateInput) (Receipt, error)
	UpdateDisplayName(ctx context.Context, actor types.Actor, input DisplayNameInput) (Receipt, error)
	Delete(ctx context.Context, actor types.Actor, receiptKey string) (Receipt, error)
	Upload(ctx context.Context, actor types.Actor, input UploadInput) (UploadResult, error)
}

type service struct {
	repo         Repository
	transactions transactionLookup
	files        fileStore
	audit        auditRecorder
	logg         *logger.Logger
	now          func() time.Time
	newKey       func() string
}

func NewService(store Repository, txs transactionLookup, fileSvc fileStore, audit auditRecorder, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "receipts repository required")
	}
	if txs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction lookup required")
	}
	if fileSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "file service required")
	}
	if audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit recorder required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:         store,
		transactions: txs,
		files:        fileSvc,
		audit:        audit,
		logg:         logg,
		now:          time.Now,
		newKey:       uuid.NewString,
	}, nil
}

// List returns every receipt, or only those attached to transactionKey.
func (s *service) List(ctx context.Context, transactionKey string) ([]Receipt, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, repo.Translate(err, entity, "read receipts")
	}
	transactionKey = strings.TrimSpace(transactionKey)
	out := make([]Receipt, 0, len(all))
	for _, r := range all {
		if transactionKey == "" || r.TransactionKey == transactionKey {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, actor types.Actor, input CreateInput) (Receipt, error) {
	if !actor.Can(enums.CapabilityCreate) {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to attach receipts")
	}
	problems := map[string]string{}
	for field, value := range map[string]string{
		"transactionKey": input.TransactionKey,
		"fileName":       input.FileName,
		"fileUrl":        input.FileURL,
		"fileId":         input.FileID,
	} {
		if strings.TrimSpace(value) == "" {
			problems[field] = "is required"
		}
	}
	if len(problems) > 0 {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid receipt").WithDetails(problems)
	}
	txKey, err := s.requireTransaction(ctx, input.TransactionKey)
	if err != nil {
		return Receipt{}, err
	}
	return s.append(ctx, actor, Receipt{
		TransactionKey: txKey,
		FileName:       strings.TrimSpace(input.FileName),
		FileURL:        strings.TrimSpace(input.FileURL),
		FileID:         strings.TrimSpace(input.FileID),
		Description:    strings.TrimSpace(input.Description),
		DisplayName:    strings.TrimSpace(input.DisplayName),
	})
}

func (s *service) UpdateDisplayName(ctx context.Context, actor types.Actor, input DisplayNameInput) (Receipt, error) {
	if !actor.Can(enums.CapabilityCreate) {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to rename receipts")
	}
	key := strings.TrimSpace(input.ReceiptKey)
	name := strings.TrimSpace(input.DisplayName)
	if key == "" || name == "" {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeValidation, "receiptKey and displayName are required")
	}

	var previous string
	updated, err := s.repo.Update(ctx, key, func(current Receipt) (Receipt, error) {
		if err := s.checkOwner(actor, current); err != nil {
			return Receipt{}, err
		}
		previous = current.DisplayName
		current.DisplayName = name
		return current, nil
	})
	if err != nil {
		return Receipt{}, repo.Translate(err, entity, "rename receipt")
	}
	s.record(ctx, auditlog.Entry{
		User:   actor.Email,
		Action: enums.AuditActionRenameReceipt.String(),
		Object: key,
		Field:  "displayName",
		Old:    previous,
		New:    name,
	})
	return updated, nil
}

// Delete removes the metadata row and then the Drive file. Once the row is
// gone the delete succeeds; a file Drive refuses to remove is logged as orphaned.
func (s *service) Delete(ctx context.Context, actor types.Actor, receiptKey string) (Receipt, error) {
	if !actor.Can(enums.CapabilityCreate) {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to delete receipts")
	}
	key := strings.TrimSpace(receiptKey)
	if key == "" {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeValidation, "receiptKey is required")
	}
	current, err := s.repo.Get(ctx, key)
	if err != nil {
		return Receipt{}, repo.Translate(err, entity, "read receipt")
	}
	if err := s.checkOwner(actor, current); err != nil {
		return Receipt{}, err
	}

	removed, err := s.repo.Delete(ctx, key)
	if err != nil {
		return Receipt{}, repo.Translate(err, entity, "delete receipt")
	}
	ctx = s.logg.WithRecordKey(ctx, key)
	s.logg.Info(ctx, "receipt deleted")
	s.record(ctx, auditlog.Entry{
		User:   actor.Email,
		Action: enums.AuditActionDeleteReceipt.String(),
		Object: key,
		Detail: removed.FileName,
	})
	if removed.FileID != "" {
		s.removeFile(ctx, removed.FileID)
	}
	return removed, nil
}

func (s *service) removeFile(ctx context.Context, fileID string) {
	fctx := s.logg.WithField(ctx, "file_id", fileID)
	err := s.files.Delete(context.WithoutCancel(ctx), fileID)
	switch {
	case err == nil:
	case pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		s.logg.Warn(fctx, "receipt file already missing from drive")
	default:
		s.logg.Error(fctx, "orphaned receipt file left in drive", err)
	}
}

// Upload stores the file in Drive and, when a transaction is named, appends
// its receipt row. If that append fails the Drive file is removed again.
func (s *service) Upload(ctx context.Context, actor types.Actor, input UploadInput) (UploadResult, error) {
	if !actor.Can(enums.CapabilityCreate) {
		return UploadResult{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to upload receipts")
	}
	txKey := strings.TrimSpace(input.TransactionKey)
	if txKey != "" {
		if _, err := s.requireTransaction(ctx, txKey); err != nil {
			return UploadResult{}, err
		}
	}

	file, err := s.files.Upload(ctx, files.UploadInput{
		TransactionKey: txKey,
		FileName:       input.FileName,
		Size:           input.Size,
		Content:        input.Content,
	})
	if err != nil {
		return UploadResult{}, err
	}
	result := resultFor(file)
	if txKey == "" {
		return result, nil
	}

	receipt, err := s.append(ctx, actor, Receipt{
		TransactionKey: txKey,
		FileName:       file.Name,
		FileURL:        file.ViewURL,
		FileID:         file.ID,
		Description:    strings.TrimSpace(input.Description),
		DisplayName:    displayNameFor(input),
	})
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"file_id": file.ID, "transaction_key": txKey})
		if delErr := s.files.Delete(context.WithoutCancel(ctx), file.ID); delErr != nil {
			s.logg.Error(logCtx, "failed to remove orphaned receipt file", delErr)
		} else {
			s.logg.Warn(logCtx, "receipt metadata append failed; drive file removed")
		}
		return UploadResult{}, err
	}
	result.Receipt = &receipt
	return result, nil
}

func (s *service) append(ctx context.Context, actor types.Actor, receipt Receipt) (Receipt, error) {
	receipt.ReceiptKey = s.newKey()
	receipt.UploadDate = s.now().UTC().Format(time.RFC3339)
	receipt.UploadBy = actor.Email
	stored, err := s.repo.Create(ctx, receipt)
	if err != nil {
		return Receipt{}, repo.Translate(err, entity, "append receipt")
	}
	ctx = s.logg.WithRecordKey(ctx, stored.ReceiptKey)
	s.logg.Info(ctx, "receipt attached")
	s.record(ctx, auditlog.Entry{
		User:   actor.Email,
		Action: enums.AuditActionAttachReceipt.String(),
		Object: stored.TransactionKey,
		New:    stored.ReceiptKey,
		Detail: stored.FileName,
	})
	return stored, nil
}

func (s *service) requireTransaction(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if _, err := s.transactions.Get(ctx, key); err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "transaction does not exist").
				WithDetails(map[string]string{"transactionKey": key})
		}
		return "", err
	}
	return key, nil
}

// checkOwner lets admins act on any receipt and other users on their own.
func (s *service) checkOwner(actor types.Actor, r Receipt) error {
	if actor.Role.IsAdmin() || actor.Owns(r.UploadBy) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the uploader can change this receipt")
}

func (s *service) record(ctx context.Context, entry auditlog.Entry) {
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "audit append failed")
	}
}

func displayNameFor(input UploadInput) string {
	if name := strings.TrimSpace(input.DisplayName); name != "" {
		return name
	}
	return strings.TrimSpace(input.FileName)
}
