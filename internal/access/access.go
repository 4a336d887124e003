// Package access decides whether a request may read a vault item.
//
// Evaluate is a pure function of the stored item, the current time and the
// caller's input. It never mutates state; counting an admission is the job
// of the caller once Evaluate returns Granted.
package access

import (
	"time"

	"github.com/atinyakov/linkvault/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// Decision is the outcome of an access evaluation.
type Decision int

const (
	Granted Decision = iota
	PasswordRequired
	InvalidPassword
	Expired
	LimitReached
	NotFound
)

// PasswordCost is the bcrypt cost used for link passwords.
const PasswordCost = 10

// MinPasswordLength is the shortest accepted link password, in characters.
const MinPasswordLength = 4

func (d Decision) String() string {
	switch d {
	case Granted:
		return "granted"
	case PasswordRequired:
		return "password required"
	case InvalidPassword:
		return "invalid password"
	case Expired:
		return "expired"
	case LimitReached:
		return "limit reached"
	case NotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Code returns the machine-readable code reported to clients.
func (d Decision) Code() string {
	switch d {
	case Granted:
		return "GRANTED"
	case PasswordRequired:
		return "PASSWORD_REQUIRED"
	case InvalidPassword:
		return "INVALID_PASSWORD"
	case Expired:
		return "EXPIRED"
	case LimitReached:
		return "LIMIT_REACHED"
	default:
		return "NOT_FOUND"
	}
}

// Evaluate applies the access rules to item in order: existence, password
// gate, blob availability, expiry, view ceiling. The password gate runs
// before everything else so that a wrong password never reveals the item's
// state. A reclaimed file is NotFound whatever its status.
// On the download path only file items exist.
func Evaluate(item *models.VaultItem, now time.Time, password string, download bool) Decision {
	if item == nil {
		return NotFound
	}
	if download && item.Kind != models.KindFile {
		return NotFound
	}
	if d := CheckPassword(item, password); d != Granted {
		return d
	}
	if item.Reclaimed() {
		return NotFound
	}
	switch StatusAt(item, now) {
	case models.StatusExpired:
		return Expired
	case models.StatusLimitReached:
		return LimitReached
	}
	return Granted
}

// CheckPassword runs only the password gate of Evaluate.
func CheckPassword(item *models.VaultItem, password string) Decision {
	if !item.HasPassword() {
		return Granted
	}
	if password == "" {
		return PasswordRequired
	}
	if !VerifyPassword(*item.PasswordHash, password) {
		return InvalidPassword
	}
	return Granted
}

// StatusAt derives the lifecycle status of item at now.
func StatusAt(item *models.VaultItem, now time.Time) models.Status {
	return StatusOf(item.ExpiresAt, item.MaxViews, item.ViewCount, now)
}

// StatusOf is the single precedence rule shared by request evaluation and
// owner listings: expiry wins over an exhausted view ceiling.
func StatusOf(expiresAt time.Time, maxViews, viewCount int, now time.Time) models.Status {
	if now.After(expiresAt) {
		return models.StatusExpired
	}
	if maxViews > 0 && viewCount >= maxViews {
		return models.StatusLimitReached
	}
	return models.StatusActive
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword compares password against hash in constant time.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
