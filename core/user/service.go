package user

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		GetUserByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string, exec ...core.DBExecutor) (User, error)
		// UpdateUser only writes non-zero fields; isActive is applied when non-nil.
		UpdateUser(ctx context.Context, usr User, isActive *bool, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	Service struct {
		conf *core.Config
		repo Repository
		mail core.EmailService
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) *Service {
	return &Service{
		conf: conf,
		repo: repo,
		mail: mailSvc,
	}
}

func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	active := true
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  &active,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}

	if usr.Email != "" {
		svc.sendEmailConfirmation(usr)
	}
	return usr, nil
}

// Invite creates an inactive, password-less account and mails the invitee a
// signed link to complete it.
func (svc *Service) Invite(ctx context.Context, inv Invitation) (User, error) {
	now := time.Now().UTC()
	inactive := false
	usr := User{
		Name:      inv.Name,
		Email:     inv.Email,
		IsActive:  &inactive,
		Role:      inv.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating invited user")
	}

	token, err := MakeToken(svc.conf, usr, PurposeInvitation)
	if err != nil {
		return User{}, errors.Wrap(err, "making invitation token")
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("You have been invited to %s", svc.conf.AppName),
		TemplateName: "user-invitation",
		TemplateData: struct {
			Name string
			Role string
			Path string
		}{usr.Name, usr.Role.Name(), svc.frontendPath("accept-invitation", usr, token)},
	})
	return usr, nil
}

// VerifyInvitation checks the invitation token without consuming it.
func (svc *Service) VerifyInvitation(ctx context.Context, vi VerifyInvitation) (User, error) {
	return svc.verifyTokenizedUser(ctx, vi.UID, vi.Token, PurposeInvitation)
}

// AcceptInvitation completes an invited account: sets the password,
// activates the user and marks the email address as confirmed.
func (svc *Service) AcceptInvitation(ctx context.Context, ai AcceptInvitation) (User, error) {
	usr, err := svc.verifyTokenizedUser(ctx, ai.UID, ai.Token, PurposeInvitation)
	if err != nil {
		return User{}, err
	}

	if ai.Username != "" {
		if err := svc.CheckUniqueness(ai.Username, "", usr); err != nil {
			return User{}, err
		}
		usr.Username = ai.Username
	}
	if err := usr.SetPassword(ai.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.EmailConfirmed = true
	usr.UpdatedAt = time.Now().UTC()

	active := true
	usr, err = svc.repo.UpdateUser(ctx, usr, &active)
	return usr, errors.Wrap(err, "updating invited user")
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, err := MakeToken(svc.conf, usr, PurposePasswordReset)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Password reset on %s", svc.conf.AppName),
		TemplateName: "password-reset",
		TemplateData: struct {
			Name string
			Path string
		}{usr.Name, svc.frontendPath("password-change", usr, token)},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	usr, err := svc.verifyTokenizedUser(ctx, rp.UID, rp.Token, PurposePasswordReset)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()

	if _, err := svc.repo.UpdateUser(ctx, usr, nil); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

// ConfirmEmail marks the user's email address as confirmed.
func (svc *Service) ConfirmEmail(ctx context.Context, ce ConfirmEmail) (User, error) {
	usr, err := svc.verifyTokenizedUser(ctx, ce.UID, ce.Token, PurposeEmailConfirm)
	if err != nil {
		return User{}, err
	}
	usr.EmailConfirmed = true
	usr.UpdatedAt = time.Now().UTC()

	usr, err = svc.repo.UpdateUser(ctx, usr, nil)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, User{ID: usr.ID, LastLogin: usr.LastLogin}, nil)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Role:      uu.Role,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids)
}

func (svc *Service) sendEmailConfirmation(usr User) {
	token, err := MakeToken(svc.conf, usr, PurposeEmailConfirm)
	if err != nil {
		return
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Confirm your email on %s", svc.conf.AppName),
		TemplateName: "email-confirm",
		TemplateData: struct {
			Name string
			Path string
		}{usr.Name, svc.frontendPath("confirm-email", usr, token)},
	})
}

func (svc *Service) verifyTokenizedUser(ctx context.Context, uid, token string, purpose TokenPurpose) (User, error) {
	id, err := DecodeUID(uid)
	if err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidToken
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if err := VerifyToken(svc.conf, usr, token, purpose); err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *Service) frontendPath(page string, usr User, token string) string {
	q := make(url.Values)
	q.Set("uid", EncodeUID(usr))
	q.Set("token", token)
	return fmt.Sprintf("/%s/%s?%s", svc.conf.DefaultLang, page, q.Encode())
}
