package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core/school"
	"github.com/darasahub/darasa/core/setting"
)

type settingApi struct {
	svc      *setting.Service
	validate *validator.Validate
}

func registerSettingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *setting.Service, validate *validator.Validate) {
	api := settingApi{svc: svc, validate: validate}

	sg := g.Group("/settings", jwt, schoolMiddleware())
	sg.GET("", api.query)
	sg.GET("/:key", api.retrieve)
	sg.PUT("/:key", api.set, adminMiddleware())
	sg.DELETE("/:key", api.destroy, adminMiddleware())
}

func (api *settingApi) set(ctx echo.Context) error {
	var data SetSettingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetSettingRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	sel := ctx.Get(contextSelectionKey).(school.Selection)
	stg, err := api.svc.Set(ctx.Request().Context(), sel.SchoolID, ctx.Param("key"), data.Value)
	if err != nil {
		return errors.Wrap(err, "setting value")
	}
	return ctx.JSON(http.StatusOK, stg)
}

func (api *settingApi) query(ctx echo.Context) error {
	sel := ctx.Get(contextSelectionKey).(school.Selection)
	settings, err := api.svc.All(ctx.Request().Context(), sel.SchoolID)
	if err != nil {
		return errors.Wrap(err, "querying settings")
	}
	if settings == nil {
		settings = []setting.Setting{}
	}
	return ctx.JSON(http.StatusOK, settings)
}

func (api *settingApi) retrieve(ctx echo.Context) error {
	sel := ctx.Get(contextSelectionKey).(school.Selection)
	stg, err := api.svc.Get(ctx.Request().Context(), sel.SchoolID, ctx.Param("key"))
	if err != nil {
		if errors.Cause(err) == setting.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding setting")
	}
	return ctx.JSON(http.StatusOK, stg)
}

func (api *settingApi) destroy(ctx echo.Context) error {
	sel := ctx.Get(contextSelectionKey).(school.Selection)
	if err := api.svc.Delete(ctx.Request().Context(), sel.SchoolID, ctx.Param("key")); err != nil {
		return errors.Wrap(err, "deleting setting")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type SetSettingRequest struct {
	Value string `json:"value" validate:"required"`
}
