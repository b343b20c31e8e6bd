package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core/notice"
	"github.com/darasahub/darasa/core/school"
	"github.com/darasahub/darasa/core/user"
)

type noticeApi struct {
	svc      *notice.Service
	validate *validator.Validate
}

func registerNoticeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *notice.Service, validate *validator.Validate) {
	api := noticeApi{svc: svc, validate: validate}

	// all notice endpoints operate within the selected school
	ng := g.Group("/notices", jwt, schoolMiddleware())
	ng.GET("", api.query)
	ng.GET("/:id", api.retrieve)
	ng.POST("", api.create, roleMiddleware(user.RoleAdmin, user.RoleStaff))
	ng.PUT("/:id", api.update, roleMiddleware(user.RoleAdmin, user.RoleStaff))
	ng.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *noticeApi) create(ctx echo.Context) error {
	var data notice.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sel := ctx.Get(contextSelectionKey).(school.Selection)

	ntc, err := api.svc.Create(ctx.Request().Context(), sel.SchoolID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating notice")
	}
	return ctx.JSON(http.StatusCreated, ntc)
}

// query lists the notices visible to the caller: scoped to the selected
// school and branch, filtered by role audience and publication window.
func (api *noticeApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sel := ctx.Get(contextSelectionKey).(school.Selection)

	role, err := claims.Role()
	if err != nil {
		return errHttpForbidden
	}

	filter := &notice.QueryFilter{
		BranchID: sel.BranchID,
		Role:     role,
		ActiveAt: time.Now().UTC(),
	}
	notices, err := api.svc.Query(ctx.Request().Context(), sel.SchoolID, filter)
	if err != nil {
		return errors.Wrap(err, "querying notices")
	}
	if notices == nil {
		notices = []notice.Notice{}
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *noticeApi) retrieve(ctx echo.Context) error {
	ntc, err := api.contextNotice(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ntc)
}

func (api *noticeApi) update(ctx echo.Context) error {
	ntc, err := api.contextNotice(ctx)
	if err != nil {
		return err
	}

	var data notice.UpdateNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateNotice")
	}
	if err := data.Validate(ntc, api.validate); err != nil {
		return err
	}

	ntc, err = api.svc.Update(ctx.Request().Context(), ntc.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating notice")
	}
	return ctx.JSON(http.StatusOK, ntc)
}

func (api *noticeApi) destroy(ctx echo.Context) error {
	ntc, err := api.contextNotice(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), ntc.ID); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// contextNotice fetches the notice by ID and refuses cross-school access.
func (api *noticeApi) contextNotice(ctx echo.Context) (notice.Notice, error) {
	sel := ctx.Get(contextSelectionKey).(school.Selection)

	ntc, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == notice.ErrNotFound {
			return notice.Notice{}, errHttpNotFound
		}
		return notice.Notice{}, errors.Wrap(err, "finding notice by ID")
	}
	if ntc.SchoolID != sel.SchoolID {
		return notice.Notice{}, errHttpNotFound
	}
	return ntc, nil
}
