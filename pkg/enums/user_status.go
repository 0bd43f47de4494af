package enums

// UserStatus gates whether a profile may call the API.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

func (s UserStatus) String() string {
	return string(s)
}

// IsActive treats a blank status as active; profiles typed into the sheet by
// hand often leave it empty.
func (s UserStatus) IsActive() bool {
	return s == "" || s == UserStatusActive
}
