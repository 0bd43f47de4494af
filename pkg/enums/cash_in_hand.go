package enums

import "fmt"

// CashInHandType classifies a cash-in-hand ledger adjustment.
type CashInHandType string

const (
	CashInHandTypeAdjustment CashInHandType = "Adjustment"
	CashInHandTypeTransfer   CashInHandType = "Transfer"
	CashInHandTypeOther      CashInHandType = "Other"
)

var validCashInHandTypes = []CashInHandType{
	CashInHandTypeAdjustment,
	CashInHandTypeTransfer,
	CashInHandTypeOther,
}

func (c CashInHandType) String() string {
	return string(c)
}

func (c CashInHandType) IsValid() bool {
	for _, candidate := range validCashInHandTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseCashInHandType(value string) (CashInHandType, error) {
	for _, candidate := range validCashInHandTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cash in hand type %q", value)
}
