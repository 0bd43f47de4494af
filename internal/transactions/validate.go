package transactions

import (
	"strings"
	"time"

	"github.com/angelmondragon/miyf-books/pkg/enums"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
)

type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction").WithDetails(map[string]string(f))
}

func validateCreate(input CreateInput) (Record, error) {
	problems := fieldErrors{}
	record := Record{
		Who:         strings.TrimSpace(input.Who),
		Amount:      input.Amount,
		Description: strings.TrimSpace(input.Description),
		TakePut:     input.TakePut,
		Remark:      strings.TrimSpace(input.Remark),
	}

	account, ok := parseAccount(input.Account)
	if !ok {
		problems["account"] = "unknown account"
	}
	record.Account = account

	if date, ok := normalizeDate(input.Date); ok {
		record.Date = date
	} else {
		problems["date"] = "must be a YYYY-MM-DD date"
	}
	if txType, err := enums.ParseTransactionType(strings.TrimSpace(input.Type)); err == nil {
		record.Type = txType
	} else {
		problems["type"] = "must be Income or Expense"
	}
	if record.Who == "" {
		problems["who"] = "is required"
	}
	if !input.Amount.IsPositive() {
		problems["amount"] = "must be greater than zero"
	}
	if err := problems.err(); err != nil {
		return Record{}, err
	}
	return record, nil
}

func validateUpdate(input UpdateInput) error {
	problems := fieldErrors{}
	if input.Account != nil {
		if _, ok := parseAccount(*input.Account); !ok {
			problems["account"] = "unknown account"
		}
	}
	if input.Date != nil {
		if _, ok := normalizeDate(*input.Date); !ok {
			problems["date"] = "must be a YYYY-MM-DD date"
		}
	}
	if input.Type != nil {
		if _, err := enums.ParseTransactionType(strings.TrimSpace(*input.Type)); err != nil {
			problems["type"] = "must be Income or Expense"
		}
	}
	if input.Who != nil && strings.TrimSpace(*input.Who) == "" {
		problems["who"] = "cannot be empty"
	}
	if input.Amount != nil && !input.Amount.IsPositive() {
		problems["amount"] = "must be greater than zero"
	}
	return problems.err()
}

func applyUpdate(current Record, input UpdateInput) Record {
	if input.Account != nil {
		current.Account, _ = parseAccount(*input.Account)
	}
	if input.Date != nil {
		current.Date, _ = normalizeDate(*input.Date)
	}
	if input.Type != nil {
		current.Type, _ = enums.ParseTransactionType(strings.TrimSpace(*input.Type))
	}
	if input.Who != nil {
		current.Who = strings.TrimSpace(*input.Who)
	}
	if input.Amount != nil {
		current.Amount = *input.Amount
	}
	if input.Description != nil {
		current.Description = strings.TrimSpace(*input.Description)
	}
	if input.TakePut != nil {
		current.TakePut = *input.TakePut
	}
	if input.Remark != nil {
		current.Remark = strings.TrimSpace(*input.Remark)
	}
	return current
}

// parseAccount defaults a blank account to MIYF.
func parseAccount(raw string) (enums.Account, bool) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return enums.AccountMIYF, true
	}
	account := enums.Account(strings.ToUpper(clean))
	return account, account.IsValid()
}

// normalizeDate accepts YYYY-MM-DD or a full RFC3339 timestamp.
func normalizeDate(raw string) (string, bool) {
	clean := strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, clean); err == nil {
		return t.Format(time.DateOnly), true
	}
	if t, err := time.Parse(time.RFC3339, clean); err == nil {
		return t.UTC().Format(time.DateOnly), true
	}
	return "", false
}

// ParseFilter builds a ListFilter from raw query values.
func ParseFilter(status, txType, from, to string) (ListFilter, error) {
	problems := fieldErrors{}
	var filter ListFilter
	if status = strings.TrimSpace(status); status != "" {
		parsed, err := enums.ParseTransactionStatus(status)
		if err != nil {
			problems["status"] = "must be Pending or Approved"
		}
		filter.Status = parsed
	}
	if txType = strings.TrimSpace(txType); txType != "" {
		parsed, err := enums.ParseTransactionType(txType)
		if err != nil {
			problems["type"] = "must be Income or Expense"
		}
		filter.Type = parsed
	}
	if from != "" {
		date, ok := normalizeDate(from)
		if !ok {
			problems["from"] = "must be a YYYY-MM-DD date"
		}
		filter.From = date
	}
	if to != "" {
		date, ok := normalizeDate(to)
		if !ok {
			problems["to"] = "must be a YYYY-MM-DD date"
		}
		filter.To = date
	}
	if err := problems.err(); err != nil {
		return ListFilter{}, err
	}
	return filter, nil
}

