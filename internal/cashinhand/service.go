package cashinhand

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/miyf-books/internal/auditlog"
	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/angelmondragon/miyf-books/pkg/types"
	"github.com/shopspring/decimal"
)

// Entry is one signed ledger adjustment.
type Entry struct {
	Key         string               `json:"key"`
	Date        string               `json:"date"`
	Type        enums.CashInHandType `json:"type"`
	Amount      decimal.Decimal      `json:"amount"`
	Description string               `json:"description"`
	CreatedBy   string               `json:"createdBy"`
	CreatedDate string               `json:"createdDate"`
}

// Ledger is the running balance with the history it was computed from.
type Ledger struct {
	Balance decimal.Decimal `json:"balance"`
	Entries []Entry         `json:"entries"`
}

// AdjustInput is a new signed adjustment. Date defaults to today (UTC).
type AdjustInput struct {
	Date        string          `json:"date"`
	Type        string          `json:"type" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type auditRecorder interface {
	Record(ctx context.Context, entry auditlog.Entry) error
}

type Service interface {
	Balance(ctx context.Context) (Ledger, error)
	Adjust(ctx context.Context, actor types.Actor, input AdjustInput) (Entry, error)
}

type service struct {
	repo  Repository
	audit auditRecorder
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(store Repository, audit auditRecorder, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cash in hand repository required")
	}
	if audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit recorder required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: store, audit: audit, logg: logg, now: time.Now}, nil
}

// Balance recomputes the sum of every adjustment ever appended.
func (s *service) Balance(ctx context.Context) (Ledger, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return Ledger{}, repo.Translate(err, "cash in hand", "read cash in hand")
	}
	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Amount)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Ledger{Balance: balance, Entries: entries}, nil
}

func (s *service) Adjust(ctx context.Context, actor types.Actor, input AdjustInput) (Entry, error) {
	if !actor.Can(enums.CapabilityApprove) {
		return Entry{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to adjust cash in hand")
	}
	entry, err := s.validate(input)
	if err != nil {
		return Entry{}, err
	}
	entry.CreatedBy = actor.Email
	entry.CreatedDate = s.now().UTC().Format(time.RFC3339)

	stored, err := s.repo.Append(ctx, entry)
	if err != nil {
		return Entry{}, repo.Translate(err, "cash in hand", "append cash in hand")
	}

	ctx = s.logg.WithRecordKey(ctx, stored.Key)
	if err := s.audit.Record(ctx, auditlog.Entry{
		User:   actor.Email,
		Action: enums.AuditActionCashAdjustment.String(),
		Object: stored.Key,
		Field:  "amount",
		New:    stored.Amount.String(),
		Detail: strings.TrimSpace(stored.Type.String() + " " + stored.Description),
	}); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "audit append failed for cash adjustment")
	}
	return stored, nil
}

func (s *service) validate(input AdjustInput) (Entry, error) {
	problems := map[string]string{}
	entry := Entry{Amount: input.Amount, Description: strings.TrimSpace(input.Description)}

	kind, err := enums.ParseCashInHandType(strings.TrimSpace(input.Type))
	if err != nil {
		problems["type"] = "must be Adjustment, Transfer or Other"
	}
	entry.Type = kind

	if input.Amount.IsZero() {
		problems["amount"] = "must be non-zero"
	}

	date := strings.TrimSpace(input.Date)
	if date == "" {
		date = s.now().UTC().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, date); err != nil {
		problems["date"] = "must be a YYYY-MM-DD date"
	}
	entry.Date = date

	if len(problems) > 0 {
		return Entry{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid cash in hand adjustment").WithDetails(problems)
	}
	return entry, nil
}
