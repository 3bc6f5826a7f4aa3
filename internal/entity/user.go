package entity

import "time"

// UserStatus tracks whether an account may sign in.
type UserStatus int

const (
	UserStatusInactive         UserStatus = 0
	UserStatusActive           UserStatus = 1
	UserStatusUnconfirmedEmail UserStatus = 2
)

func (s UserStatus) String() string {
	switch s {
	case UserStatusActive:
		return "active"
	case UserStatusUnconfirmedEmail:
		return "unconfirmed_email"
	default:
		return "inactive"
	}
}

// User is the account that roles and keys hang off.
type User struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	RoleID       uint       `gorm:"column:role_id;index;not null" json:"role_id"`
	Status       UserStatus `gorm:"column:status;not null;default:0" json:"status"`
	Email        string     `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	NewEmail     *string    `gorm:"column:new_email;type:varchar(255)" json:"new_email,omitempty"`
	PasswordHash string     `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	DisplayName  string     `gorm:"column:display_name;type:varchar(255)" json:"display_name"`

	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

// CanLogin reports whether the account is fully active.
func (u *User) CanLogin() bool {
	return u != nil && u.Status == UserStatusActive
}

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	RoleID      uint      `json:"role_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserQuery supports listing users with pagination.
type UserQuery struct {
	BaseParams
	RoleID  uint   `json:"role_id" form:"role_id" query:"role_id"`
	Keyword string `json:"keyword" form:"keyword" query:"keyword"`
}

// UserListResponse is the response for listing users.
type UserListResponse struct {
	Users []UserSummary `json:"users"`
	Meta  *Meta         `json:"meta"`
}

// AuthLoginRequest is the login request payload.
type AuthLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthRegisterRequest is the registration request payload.
type AuthRegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

// AuthResponse is returned after a successful login.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

// RegisterResponse tells the client whether an activation email is pending.
type RegisterResponse struct {
	User                 UserSummary `json:"user"`
	ConfirmationRequired bool        `json:"confirmation_required"`
}

// ConfirmEmailRequest carries a key from an activation or email-change link.
type ConfirmEmailRequest struct {
	Key string `json:"key" binding:"required"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Key      string `json:"key" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// EmailChangeRequest asks for a new email address to be confirmed.
type EmailChangeRequest struct {
	Email string `json:"email" binding:"required,email"`
}
