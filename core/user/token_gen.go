package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/darasahub/darasa/core"
)

// TokenPurpose scopes a timed token to a single flow; a token minted for one
// purpose never verifies for another.
type TokenPurpose string

const (
	PurposePasswordReset TokenPurpose = "password-reset"
	PurposeInvitation    TokenPurpose = "invitation"
	PurposeEmailConfirm  TokenPurpose = "email-confirm"
)

var (
	salt    = []byte("darasa.core.user.token_gen")
	NowFunc = time.Now // mockable

	// errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// EncodeUID base64 encodes given User ID.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// DecodeUID base64 decodes given UID.
func DecodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", ErrInvalidToken
	}
	return string(idBytes), nil
}

// MakeToken generates a signed, expiring token for a given User and purpose.
// The token is invalidated by use: it hashes the password hash and last login,
// so a password change or a new login voids outstanding tokens.
func MakeToken(conf *core.Config, usr User, purpose TokenPurpose) (string, error) {
	return makeTokenWithTimestamp(conf, usr, purpose, numDaysSince2001(NowFunc()))
}

// VerifyToken checks that a token for a given User and purpose is valid.
func VerifyToken(conf *core.Config, usr User, token string, purpose TokenPurpose) error {
	if token == "" {
		return ErrInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return ErrInvalidToken
	}
	tsB32 := parts[0]

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(tsB32)
	if err != nil {
		return ErrInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return ErrInvalidToken
	}

	// check that token has not been tampered with
	newToken, err := makeTokenWithTimestamp(conf, usr, purpose, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(newToken), []byte(token)) == 0 {
		return ErrInvalidToken
	}

	// check that the timestamp is within limit
	if (numDaysSince2001(NowFunc()) - ts) > int(purposeTimeout(conf, purpose)/(24*time.Hour)) {
		return ErrTokenExpired
	}
	return nil
}

func purposeTimeout(conf *core.Config, purpose TokenPurpose) time.Duration {
	switch purpose {
	case PurposeInvitation:
		return conf.InvitationTimeoutDelta
	case PurposeEmailConfirm:
		return conf.EmailConfirmTimeoutDelta
	default:
		return conf.PasswordResetTimeoutDelta
	}
}

func makeTokenWithTimestamp(conf *core.Config, usr User, purpose TokenPurpose, ts int) (string, error) {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	sig, err := sign(conf, hashValue(usr, purpose, ts))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", tsB32, sig), nil
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func sign(conf *core.Config, val []byte) (string, error) {
	key := sha256.Sum256(append(salt, conf.SecretKey...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func hashValue(usr User, purpose TokenPurpose, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(string(purpose))
	val.WriteString(usr.ID)
	val.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		val.WriteString(usr.LastLogin.String())
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
