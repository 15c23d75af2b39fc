package models

import "time"

// AccountStatus tracks whether a borrowed credential is still usable.
type AccountStatus string

const (
	AccountValid   AccountStatus = "valid"
	AccountExpired AccountStatus = "expired"
)

// MaxAccountFailures is the consecutive-failure count beyond which an
// account flips to expired.
const MaxAccountFailures = 5

// Account is a borrowed upstream identity. Sessdata and BiliJct hold
// the AES-GCM sealed secrets, never plaintext.
type Account struct {
	ID       string `json:"id"`
	UID      string `json:"uid"`
	Nickname string `json:"nickname,omitempty"`

	Sessdata string `json:"-"`
	BiliJct  string `json:"-"` // optional secondary secret

	BindMethod   string        `json:"bind_method"`
	Status       AccountStatus `json:"status"`
	LastFailures int           `json:"last_failures"`

	BoundAt   time.Time `json:"bound_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsUsable reports whether the account may be offered to a collector.
func (a *Account) IsUsable() bool {
	return a.Status == AccountValid
}
