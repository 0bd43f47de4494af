package transactions

import (
	"github.com/angelmondragon/miyf-books/pkg/enums"
	"github.com/shopspring/decimal"
)

// Record is one row of the transaction sheet.
type Record struct {
	Key            string                  `json:"key"`
	Account        enums.Account           `json:"account"`
	Date           string                  `json:"date"`
	Type           enums.TransactionType   `json:"type"`
	Who            string                  `json:"who"`
	Amount         decimal.Decimal         `json:"amount"`
	Description    string                  `json:"description"`
	Status         enums.TransactionStatus `json:"status"`
	TakePut        bool                    `json:"takePut"`
	Remark         string                  `json:"remark"`
	CreatedDate    string                  `json:"createdDate"`
	CreatedBy      string                  `json:"createdBy"`
	ApprovedDate   string                  `json:"approvedDate"`
	ApprovedBy     string                  `json:"approvedBy"`
	LastUserUpdate string                  `json:"lastUserUpdate"`
	LastDateUpdate string                  `json:"lastDateUpdate"`
}

// CreateInput carries the caller supplied fields of a new record.
type CreateInput struct {
	Account     string          `json:"account"`
	Date        string          `json:"date" validate:"required"`
	Type        string          `json:"type" validate:"required"`
	Who         string          `json:"who" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	TakePut     bool            `json:"takePut"`
	Remark      string          `json:"remark"`
}

// UpdateInput is a partial update; nil fields keep their stored value.
type UpdateInput struct {
	Account     *string          `json:"account"`
	Date        *string          `json:"date"`
	Type        *string          `json:"type"`
	Who         *string          `json:"who"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description"`
	TakePut     *bool            `json:"takePut"`
	Remark      *string          `json:"remark"`
}

// StatusInput moves a record between Pending and Approved.
type StatusInput struct {
	Key        string `json:"key" validate:"required"`
	Status     string `json:"status" validate:"required"`
	ApprovedBy string `json:"approvedBy"`
}

// ListFilter narrows List and Summary. Zero values match everything; dates
// are inclusive YYYY-MM-DD bounds.
type ListFilter struct {
	Status enums.TransactionStatus
	Type   enums.TransactionType
	From   string
	To     string
}

func (f ListFilter) matches(r Record) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.From != "" && r.Date < f.From {
		return false
	}
	if f.To != "" && r.Date > f.To {
		return false
	}
	return true
}

// Summary is the dashboard aggregate.
type Summary struct {
	Income        decimal.Decimal `json:"income"`
	Expense       decimal.Decimal `json:"expense"`
	Net           decimal.Decimal `json:"net"`
	PendingCount  int             `json:"pendingCount"`
	ApprovedCount int             `json:"approvedCount"`
	Total         int             `json:"total"`
}
