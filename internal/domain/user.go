package domain

import "time"

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is the persisted account record. Telegram principals carry a
// TelegramID and no password; staff accounts carry Email/PasswordHash and no
// TelegramID. SecurityStamp is the rotatable revocation nonce: changing it
// invalidates every token issued before the rotation.
type User struct {
	ID            string
	TelegramID    *string
	Username      string
	FirstName     string
	LastName      string
	Email         *string
	PasswordHash  *string
	Role          Role
	MerchantID    *string
	SecurityStamp string
	Status        UserStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Identity reconstructs the authenticated principal view of the user.
func (u *User) Identity() *Identity {
	tgID := ""
	if u.TelegramID != nil {
		tgID = *u.TelegramID
	}
	return &Identity{
		UserID:        u.ID,
		TelegramID:    tgID,
		Role:          u.Role,
		MerchantID:    u.MerchantID,
		SecurityStamp: u.SecurityStamp,
		Capabilities:  CapabilitiesFor(u.Role),
	}
}
