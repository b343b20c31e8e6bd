package main

import (
	"context"
	"time"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	upd := user.User{ID: usr.ID, PasswordHash: usr.PasswordHash, UpdatedAt: time.Now().UTC()}
	if _, err := cli.usrRepo.UpdateUser(ctx, upd, nil); err != nil {
		return err
	}
	return nil
}
