package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/account"
	"github.com/darasahub/darasa/core/school"
	"github.com/darasahub/darasa/core/user"
)

type accountApi struct {
	svc      *account.Service
	userSvc  *user.Service
	validate *validator.Validate
}

func registerAccountAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *account.Service, userSvc *user.Service, validate *validator.Validate) {
	api := accountApi{svc: svc, userSvc: userSvc, validate: validate}

	// fee records live within the selected school; money moves through
	// the accountant (or admin) only
	fg := g.Group("/fees", jwt, schoolMiddleware())
	fg.GET("", api.query)
	fg.GET("/:id", api.retrieve)
	fg.GET("/outstanding/:studentID", api.outstanding)
	fg.POST("", api.charge, roleMiddleware(user.RoleAdmin, user.RoleAccountant))
	fg.POST("/:id/pay", api.pay, roleMiddleware(user.RoleAdmin, user.RoleAccountant))
	fg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *accountApi) charge(ctx echo.Context) error {
	var data account.NewFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFee")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.userSvc.GetByID(ctx.Request().Context(), data.StudentID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "student not found"})
		}
		return errors.Wrap(err, "finding student by ID")
	}

	sel := ctx.Get(contextSelectionKey).(school.Selection)
	fee, err := api.svc.Charge(ctx.Request().Context(), sel.SchoolID, data)
	if err != nil {
		return errors.Wrap(err, "charging fee")
	}
	return ctx.JSON(http.StatusCreated, fee)
}

// query lists the school's fee records. A student or parent only sees their
// own records; staff roles may filter by student.
func (api *accountApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sel := ctx.Get(contextSelectionKey).(school.Selection)

	filter := new(account.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []account.FeeRecord{})
	}

	role, err := claims.Role()
	if err != nil {
		return errHttpForbidden
	}
	if role == user.RoleStudent || role == user.RoleParent {
		filter.StudentID = claims.Subject
	}

	fees, err := api.svc.Query(ctx.Request().Context(), sel.SchoolID, filter)
	if err != nil {
		return errors.Wrap(err, "querying fee records")
	}
	if fees == nil {
		fees = []account.FeeRecord{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *accountApi) retrieve(ctx echo.Context) error {
	fee, err := api.contextFee(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fee)
}

func (api *accountApi) outstanding(ctx echo.Context) error {
	sel := ctx.Get(contextSelectionKey).(school.Selection)

	total, err := api.svc.OutstandingFor(ctx.Request().Context(), sel.SchoolID, ctx.Param("studentID"))
	if err != nil {
		return errors.Wrap(err, "totalling outstanding fees")
	}
	return ctx.JSON(http.StatusOK, OutstandingResponse{StudentID: ctx.Param("studentID"), Outstanding: total.String()})
}

func (api *accountApi) pay(ctx echo.Context) error {
	fee, err := api.contextFee(ctx)
	if err != nil {
		return err
	}

	var data account.Payment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Payment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	fee, err = api.svc.Pay(ctx.Request().Context(), fee.ID, data)
	if err != nil {
		if errors.Cause(err) == account.ErrOverpayment {
			return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: err.Error()})
		}
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusOK, fee)
}

func (api *accountApi) destroy(ctx echo.Context) error {
	fee, err := api.contextFee(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), fee.ID); err != nil {
		return errors.Wrap(err, "deleting fee record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// contextFee fetches the fee record and refuses cross-school access;
// students only reach their own records.
func (api *accountApi) contextFee(ctx echo.Context) (account.FeeRecord, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return account.FeeRecord{}, errors.Wrap(err, "getting context claims")
	}
	sel := ctx.Get(contextSelectionKey).(school.Selection)

	fee, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return account.FeeRecord{}, errHttpNotFound
		}
		return account.FeeRecord{}, errors.Wrap(err, "finding fee record by ID")
	}
	if fee.SchoolID != sel.SchoolID {
		return account.FeeRecord{}, errHttpNotFound
	}

	if role, rErr := claims.Role(); rErr == nil && (role == user.RoleStudent || role == user.RoleParent) {
		if fee.StudentID != claims.Subject {
			return account.FeeRecord{}, errHttpNotFound
		}
	}
	return fee, nil
}

type OutstandingResponse struct {
	StudentID   string `json:"student_id"`
	Outstanding string `json:"outstanding"`
}
