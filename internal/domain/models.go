// Package domain defines the persistence models for users, emoji requests,
// and cached emoji explanations. These types are mapped with GORM and form
// the core data layer of the application.
package domain

import "time"

// Role is the capability tag attached to a user account. There is no
// behavioral difference between roles beyond visibility scope, so it is a
// plain string tag rather than a type hierarchy.
type Role string

const (
	// RoleAdmin may read and enumerate every request and cache row.
	RoleAdmin Role = "ADMIN"
	// RoleUser may only read and create rows it owns.
	RoleUser Role = "USER"
)

// Valid reports whether r is one of the two defined roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// RequestStatus tracks the lifecycle of an EmojiRequest. PENDING is the only
// non-terminal state; EXPLAINED and FAILED are terminal and a row never
// leaves a terminal state.
type RequestStatus string

const (
	// StatusPending marks a request whose explanation is still being generated.
	StatusPending RequestStatus = "PENDING"
	// StatusExplained marks a request that resolved with an explanation.
	StatusExplained RequestStatus = "EXPLAINED"
	// StatusFailed marks a request whose generation attempt failed.
	StatusFailed RequestStatus = "FAILED"
)

// Terminal reports whether the status permits no further transition.
func (s RequestStatus) Terminal() bool {
	return s == StatusExplained || s == StatusFailed
}

// User represents a registered account that may submit emoji requests.
//
// Fields:
//   - ID: autoincrement primary key.
//   - Email: login identity, unique across all users.
//   - PasswordHash: bcrypt hash; never serialized.
//   - Role: ADMIN or USER (enforced by DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID           uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(255);not null"`
	Role         Role      `json:"role"       gorm:"type:varchar(16);not null;default:'USER';check:role IN ('ADMIN','USER')"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// EmojiRequest is one user submission and its outcome: the request ledger.
// Rows are created by the dedupe gateway (PENDING on a cache miss, EXPLAINED
// immediately on a hit) and mutated exactly once by the generation
// coordinator, which moves them to a terminal state.
//
// Invariants:
//   - Explanation is non-nil iff Status is EXPLAINED, and then always equals
//     the cached EmojiExplanation text for the same emoji.
//   - UpdatedAt >= CreatedAt and strictly increases on every mutation.
type EmojiRequest struct {
	ID          uint          `json:"id"          gorm:"primaryKey;autoIncrement"`
	UserID      uint          `json:"user_id"     gorm:"not null;index:idx_user_requests"`
	Emoji       string        `json:"emoji"       gorm:"type:varchar(64);not null;index"`
	Status      RequestStatus `json:"status"      gorm:"type:varchar(16);not null;default:'PENDING';check:status IN ('PENDING','EXPLAINED','FAILED')"`
	Explanation *string       `json:"explanation,omitempty" gorm:"type:text"`
	CreatedAt   time.Time     `json:"created_at"  gorm:"index"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// User is the owning account. The back-reference is query-only; the user
	// does not own request rows in the runtime sense.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for EmojiRequest.
func (EmojiRequest) TableName() string { return "emoji_requests" }

// EmojiExplanation is the content-addressed explanation cache. At most one
// row exists per emoji (DB unique index); whichever generation attempt wins
// the insert race creates it and the row is immutable afterwards.
type EmojiExplanation struct {
	ID          uint      `json:"id"          gorm:"primaryKey;autoIncrement"`
	Emoji       string    `json:"emoji"       gorm:"type:varchar(64);not null;uniqueIndex:ux_explanations_emoji"`
	Explanation string    `json:"explanation" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for EmojiExplanation.
func (EmojiExplanation) TableName() string { return "emoji_explanations" }
