package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/miyf-books/internal/auditlog"
	"github.com/angelmondragon/miyf-books/internal/notifications"
	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/angelmondragon/miyf-books/pkg/types"
	"github.com/shopspring/decimal"
)

const entity = "transaction"

var errUnchanged = errors.New("status unchanged")

type auditRecorder interface {
	Record(ctx context.Context, entry auditlog.Entry) error
}

// Service exposes the transaction ledger.
type Service interface {
	List(ctx context.Context, filter ListFilter) ([]Record, error)
	Get(ctx context.Context, key string) (rowstore.Row[Record], error)
	Create(ctx context.Context, actor types.Actor, input CreateInput) (rowstore.Row[Record], error)
	Update(ctx context.Context, actor types.Actor, key string, input UpdateInput, ifMatch string) (rowstore.Row[Record], error)
	UpdateStatus(ctx context.Context, actor types.Actor, input StatusInput) (rowstore.Row[Record], error)
	Delete(ctx context.Context, actor types.Actor, key string) (Record, error)
	Summary(ctx context.Context, filter ListFilter) (Summary, error)
}

type service struct {
	repo     Repository
	audit    auditRecorder
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the transaction store with its audit and notification side effects.
func NewService(store Repository, audit auditRecorder, notifier notifications.Notifier, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transactions repository required")
	}
	if audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit recorder required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if notifier == nil {
		notifier = notifications.NewLogNotifier(logg)
	}
	return &service{repo: store, audit: audit, notifier: notifier, logg: logg, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, repo.Translate(err, entity, "read transactions")
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		if filter.matches(row.Record) {
			out = append(out, row.Record)
		}
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, key string) (rowstore.Row[Record], error) {
	row, err := s.repo.Get(ctx, strings.TrimSpace(key))
	if err != nil {
		return rowstore.Row[Record]{}, repo.Translate(err, entity, "read transaction")
	}
	return row, nil
}

// Create appends a new Pending record owned by actor.
func (s *service) Create(ctx context.Context, actor types.Actor, input CreateInput) (rowstore.Row[Record], error) {
	if !actor.Can(enums.CapabilityCreate) {
		return rowstore.Row[Record]{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to create transactions")
	}
	record, err := validateCreate(input)
	if err != nil {
		return rowstore.Row[Record]{}, err
	}
	record.Status = enums.TransactionStatusPending
	record.CreatedDate = s.timestamp()
	record.CreatedBy = actor.Email

	row, err := s.repo.Create(ctx, record)
	if err != nil {
		return rowstore.Row[Record]{}, repo.Translate(err, entity, "append transaction")
	}

	ctx = s.logg.WithRecordKey(ctx, row.Record.Key)
	s.logg.Info(ctx, "transaction created")
	s.record(ctx, auditlog.Entry{
		User:   actor.Email,
		Action: enums.AuditActionCreate.String(),
		Object: row.Record.Key,
		Detail: describe(row.Record),
	})
	return row, nil
}

// Update merges the supplied fields into the stored record. Basic users may only
// edit their own Pending records.
func (s *service) Update(ctx context.Context, actor types.Actor, key string, input UpdateInput, ifMatch string) (rowstore.Row[Record], error) {
	if !actor.Can(enums.CapabilityCreate) {
		return rowstore.Row[Record]{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to edit transactions")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return rowstore.Row[Record]{}, pkgerrors.New(pkgerrors.CodeValidation, "key is required")
	}
	if err := validateUpdate(input); err != nil {
		return rowstore.Row[Record]{}, err
	}

	var before Record
	row, err := s.repo.Update(ctx, key, func(current Record) (Record, error) {
		if !actor.Role.IsAdmin() {
			if !actor.Owns(current.CreatedBy) {
				return Record{}, pkgerrors.New(pkgerrors.CodeForbidden, "only the creator can edit this transaction")
			}
			if current.Status != enums.TransactionStatusPending {
				return Record{}, pkgerrors.New(pkgerrors.CodeForbidden, "approved transactions can only be edited by an admin")
			}
		}
		before = current
		next := applyUpdate(current, input)
		next.LastUserUpdate = actor.Email
		next.LastDateUpdate = s.timestamp()
		return next, nil
	}, strings.TrimSpace(ifMatch))
	if err != nil {
		return rowstore.Row[Record]{}, repo.Translate(err, entity, "update transaction")
	}

	ctx = s.logg.WithRecordKey(ctx, key)
	for _, c := range diff(before, row.Record) {
		s.record(ctx, auditlog.Entry{
			User:   actor.Email,
			Action: enums.AuditActionUpdate.String(),
			Object: key,
			Field:  c.field,
			Old:    c.old,
			New:    c.new,
		})
	}
	return row, nil
}

// UpdateStatus moves a record between Pending and Approved. Setting the current
// status again writes nothing and records no audit row.
func (s *service) UpdateStatus(ctx context.Context, actor types.Actor, input StatusInput) (rowstore.Row[Record], error) {
	if !actor.Can(enums.CapabilityApprove) {
		return rowstore.Row[Record]{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to approve transactions")
	}
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return rowstore.Row[Record]{}, pkgerrors.New(pkgerrors.CodeValidation, "key is required")
	}
	status, err := enums.ParseTransactionStatus(strings.TrimSpace(input.Status))
	if err != nil {
		return rowstore.Row[Record]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
			WithDetails(map[string]string{"status": "must be Pending or Approved"})
	}
	approver := strings.TrimSpace(input.ApprovedBy)
	if approver == "" {
		approver = actor.DisplayName()
	}

	var previous enums.TransactionStatus
	row, err := s.repo.Update(ctx, key, func(current Record) (Record, error) {
		if current.Status == status {
			return Record{}, errUnchanged
		}
		previous = current.Status
		now := s.timestamp()
		current.Status = status
		if status == enums.TransactionStatusApproved {
			current.ApprovedDate = now
			current.ApprovedBy = approver
		} else {
			current.ApprovedDate = ""
			current.ApprovedBy = ""
		}
		current.LastUserUpdate = actor.Email
		current.LastDateUpdate = now
		return current, nil
	}, "")
	if errors.Is(err, errUnchanged) {
		return s.Get(ctx, key)
	}
	if err != nil {
		return rowstore.Row[Record]{}, repo.Translate(err, entity, "update transaction status")
	}

	ctx = s.logg.WithRecordKey(ctx, key)
	s.record(ctx, auditlog.Entry{
		User:   actor.Email,
		Action: enums.AuditActionUpdateStatus.String(),
		Object: key,
		Field:  "status",
		Old:    previous.String(),
		New:    status.String(),
		Detail: row.Record.ApprovedBy,
	})

	if status == enums.TransactionStatusApproved {
		event := notifications.RecordApproved{
			Key:          row.Record.Key,
			Account:      row.Record.Account.String(),
			Type:         row.Record.Type.String(),
			Amount:       row.Record.Amount,
			Description:  row.Record.Description,
			CreatedBy:    row.Record.CreatedBy,
			ApprovedBy:   row.Record.ApprovedBy,
			ApprovedDate: row.Record.ApprovedDate,
		}
		if err := s.notifier.RecordApproved(ctx, event); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "approval notification failed")
		}
	}
	return row, nil
}

// Delete structurally removes the record.
func (s *service) Delete(ctx context.Context, actor types.Actor, key string) (Record, error) {
	if !actor.Can(enums.CapabilityApprove) {
		return Record{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to delete transactions")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Record{}, pkgerrors.New(pkgerrors.CodeValidation, "key is required")
	}
	removed, err := s.repo.Delete(ctx, key)
	if err != nil {
		return Record{}, repo.Translate(err, entity, "delete transaction")
	}

	ctx = s.logg.WithRecordKey(ctx, key)
	s.logg.Info(ctx, "transaction deleted")
	s.record(ctx, auditlog.Entry{
		User:   actor.Email,
		Action: enums.AuditActionDelete.String(),
		Object: key,
		Detail: describe(removed.Record),
	})
	return removed.Record, nil
}

// Summary totals income and expense over the records filter selects.
func (s *service) Summary(ctx context.Context, filter ListFilter) (Summary, error) {
	records, err := s.List(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Income: decimal.Zero, Expense: decimal.Zero}
	for _, r := range records {
		switch r.Type {
		case enums.TransactionTypeIncome:
			out.Income = out.Income.Add(r.Amount)
		case enums.TransactionTypeExpense:
			out.Expense = out.Expense.Add(r.Amount)
		}
		switch r.Status {
		case enums.TransactionStatusPending:
			out.PendingCount++
		case enums.TransactionStatusApproved:
			out.ApprovedCount++
		}
	}
	out.Net = out.Income.Sub(out.Expense)
	out.Total = len(records)
	return out, nil
}

// record appends an audit row; failures are logged and dropped.
func (s *service) record(ctx context.Context, entry auditlog.Entry) {
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "audit append failed")
	}
}

func (s *service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func describe(r Record) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", r.Type, r.Amount.String(), r.Description))
}

type change struct {
	field string
	old   string
	new   string
}

// diff lists the caller editable columns that differ between two records.
func diff(before, after Record) []change {
	b := codec{}.Encode(before)
	a := codec{}.Encode(after)
	var out []change
	for i := 1; i < colLastUserUpdate; i++ {
		if i == colStatus || i == colCreatedDate || i == colCreatedBy || i == colApprovedDate || i == colApprovedBy {
			continue
		}
		if b[i] != a[i] {
			out = append(out, change{field: header[i], old: b[i], new: a[i]})
		}
	}
	return out
}
