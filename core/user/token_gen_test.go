package user

import (
	"testing"
	"time"

	"github.com/darasahub/darasa/core"
)

func testConfig() *core.Config {
	return &core.Config{
		SecretKey:                 "secret",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		InvitationTimeoutDelta:    7 * 24 * time.Hour,
		EmailConfirmTimeoutDelta:  3 * 24 * time.Hour,
	}
}

func TestMakeVerifyToken(t *testing.T) {
	conf := testConfig()

	now := time.Now()
	active := true
	usr := User{
		ID:        "0c5e3f9b-58c7-4f6b-b4a0-7e0f99e33e7a",
		Name:      "T",
		Username:  "tester",
		Email:     "t@test.test",
		IsActive:  &active,
		Role:      RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := MakeToken(conf, usr, PurposePasswordReset)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}

	// generate an expired token
	dayLate := conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := MakeToken(conf, usr, PurposePasswordReset)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	NowFunc = time.Now // reset

	otherPurposeToken, err := MakeToken(conf, usr, PurposeInvitation)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: ErrInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: ErrInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: ErrTokenExpired},
		{name: "token minted for another purpose", usr: usr, token: otherPurposeToken, wantErr: ErrInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyToken(conf, tt.usr, tt.token, PurposePasswordReset); err != tt.wantErr {
				t.Errorf("VerifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToken_invalidatedByUse(t *testing.T) {
	conf := testConfig()

	usr := User{ID: "d2c0b7de-0a6f-4e8f-8e0b-1c8e6a3e77f1", Email: "t@test.test"}
	_ = usr.SetPassword("oldpwd")

	token, err := MakeToken(conf, usr, PurposePasswordReset)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	if err := VerifyToken(conf, usr, token, PurposePasswordReset); err != nil {
		t.Fatalf("VerifyToken() failed: %v", err)
	}

	// a password change voids outstanding tokens
	_ = usr.SetPassword("newpwd")
	if err := VerifyToken(conf, usr, token, PurposePasswordReset); err != ErrInvalidToken {
		t.Errorf("VerifyToken() error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "8e27a2e5-4c3f-49f0-9f0f-2f2d3a3f5c77"}
	uid := EncodeUID(usr)

	id, err := DecodeUID(uid)
	if err != nil {
		t.Fatalf("DecodeUID() failed: %v", err)
	}
	if id != usr.ID {
		t.Errorf("DecodeUID() = %q, want %q", id, usr.ID)
	}

	if _, err = DecodeUID("???not-base64???"); err != ErrInvalidToken {
		t.Errorf("DecodeUID() error = %v, want %v", err, ErrInvalidToken)
	}
}
