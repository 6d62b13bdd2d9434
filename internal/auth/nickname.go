package auth

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const EmailDomain = "onetalk.anonymous"

const (
	MinNicknameLen = 2
	MaxNicknameLen = 32
	MinPasswordLen = 6
)

var (
	ErrNicknameRequired = errors.New("nickname is required")
	ErrNicknameLength   = errors.New("nickname must be between 2 and 32 characters")
	ErrNicknameChars    = errors.New("nickname may only contain letters, digits, spaces, '_', '-' and '.'")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordShort    = errors.New("password must be at least 6 characters")
)

// ValidateNickname checks a nickname before anything is sent to the backend.
func ValidateNickname(nickname string) error {
	n := strings.TrimSpace(nickname)
	if n == "" {
		return ErrNicknameRequired
	}
	if l := utf8.RuneCountInString(n); l < MinNicknameLen || l > MaxNicknameLen {
		return ErrNicknameLength
	}
	for _, r := range n {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' || r == '.' {
			continue
		}
		return ErrNicknameChars
	}
	return nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < MinPasswordLen {
		return ErrPasswordShort
	}
	return nil
}

// PseudoEmail maps a nickname onto the synthetic address accounts are keyed by:
// lower-cased, all whitespace removed.
func PseudoEmail(nickname string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(nickname) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String() + "@" + EmailDomain
}

func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func CheckPassword(plain, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)) == nil
}
