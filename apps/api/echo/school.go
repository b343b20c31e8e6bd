package echoapi

import (
	"context"
	"net/http"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/school"
	"github.com/darasahub/darasa/core/user"
)

type schoolApi struct {
	conf       *core.Config
	svc        *school.Service
	userSvc    *user.Service
	validate   *validator.Validate
	translator ut.Translator
	flows      *flowStore
}

func registerSchoolAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	conf *core.Config,
	svc *school.Service,
	userSvc *user.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := schoolApi{
		conf:       conf,
		svc:        svc,
		userSvc:    userSvc,
		validate:   validate,
		translator: translator,
		flows:      newFlowStore(),
	}

	sg := g.Group("/schools", jwt)

	// member endpoints
	sg.GET("/mine", api.mine)

	// admin CRUD
	sg.POST("", api.create, adminMiddleware())
	sg.GET("", api.query, adminMiddleware())
	sg.GET("/:id", api.retrieve, adminMiddleware())
	sg.PUT("/:id", api.update, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())

	sg.POST("/:id/branches", api.createBranch, adminMiddleware())
	sg.GET("/:id/branches", api.queryBranches, adminMiddleware())
	sg.PUT("/:id/branches/:branchID", api.updateBranch, adminMiddleware())
	sg.DELETE("/:id/branches/:branchID", api.destroyBranch, adminMiddleware())

	sg.POST("/:id/members", api.addMember, adminMiddleware())
	sg.DELETE("/:id/members/:userID", api.removeMember, adminMiddleware())

	// the two-step selection wizard; one flow per user
	wg := g.Group("/selection", jwt)
	wg.POST("/start", api.startSelection)
	wg.GET("", api.selectionState)
	wg.POST("/school", api.selectSchool)
	wg.POST("/branch", api.selectBranch)
	wg.POST("/skip", api.skipBranch)
	wg.POST("/back", api.backSelection)
	wg.POST("/switch", api.quickSwitch)
}

// flowStore keeps at most one selection wizard per user.
type flowStore struct {
	mu    sync.Mutex
	flows map[string]*school.Flow
}

func newFlowStore() *flowStore {
	return &flowStore{flows: make(map[string]*school.Flow)}
}

func (fs *flowStore) get(userID string) (*school.Flow, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.flows[userID]
	return f, ok
}

func (fs *flowStore) start(userID string, selector school.Selector, returnTo string) *school.Flow {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := school.NewFlow(selector, returnTo)
	fs.flows[userID] = f
	return f
}

func (fs *flowStore) drop(userID string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.flows, userID)
}

// flowSelector adapts the school service to a single user's wizard.
type flowSelector struct {
	svc    *school.Service
	userID string
}

func (s flowSelector) SelectSchool(ctx context.Context, schoolID string) error {
	_, err := s.svc.Select(ctx, s.userID, school.Selection{}, schoolID)
	return err
}

func (s flowSelector) ListBranches(ctx context.Context, schoolID string) ([]school.Branch, error) {
	return s.svc.Branches(ctx, schoolID)
}

// Handlers

func (api *schoolApi) create(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) query(ctx echo.Context) error {
	schools, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) mine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	schools, err := api.svc.SchoolsFor(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying member schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	sch, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding school by ID")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) update(ctx echo.Context) error {
	sch, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding school by ID")
	}

	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err := data.Validate(sch, api.validate, api.svc); err != nil {
		return err
	}

	sch, err = api.svc.Update(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) createBranch(ctx echo.Context) error {
	var data school.NewBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBranch")
	}
	schoolID := ctx.Param("id")
	if err := data.Validate(schoolID, api.validate, api.svc); err != nil {
		return err
	}

	br, err := api.svc.CreateBranch(ctx.Request().Context(), schoolID, data)
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "creating branch")
	}
	return ctx.JSON(http.StatusCreated, br)
}

func (api *schoolApi) queryBranches(ctx echo.Context) error {
	branches, err := api.svc.Branches(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	if branches == nil {
		branches = []school.Branch{}
	}
	return ctx.JSON(http.StatusOK, branches)
}

func (api *schoolApi) updateBranch(ctx echo.Context) error {
	br, err := api.svc.GetBranchByID(ctx.Request().Context(), ctx.Param("branchID"))
	if err != nil || br.SchoolID != ctx.Param("id") {
		return errHttpNotFound
	}

	var data school.UpdateBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBranch")
	}
	if err := data.Validate(br, api.validate, api.svc); err != nil {
		return err
	}

	br, err = api.svc.UpdateBranch(ctx.Request().Context(), br.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating branch")
	}
	return ctx.JSON(http.StatusOK, br)
}

func (api *schoolApi) destroyBranch(ctx echo.Context) error {
	br, err := api.svc.GetBranchByID(ctx.Request().Context(), ctx.Param("branchID"))
	if err != nil || br.SchoolID != ctx.Param("id") {
		return errHttpNotFound
	}
	if err := api.svc.DeleteBranches(ctx.Request().Context(), br.ID); err != nil {
		return errors.Wrap(err, "deleting branch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) addMember(ctx echo.Context) error {
	var data AddMemberRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddMemberRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	if _, err := api.userSvc.GetByID(ctx.Request().Context(), data.UserID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding user by ID")
	}

	m, err := api.svc.AddMember(ctx.Request().Context(), data.UserID, ctx.Param("id"), data.IsDefault)
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "adding member")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *schoolApi) removeMember(ctx echo.Context) error {
	if err := api.svc.RemoveMember(ctx.Request().Context(), ctx.Param("userID"), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Selection wizard handlers

func (api *schoolApi) startSelection(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data StartSelectionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartSelectionRequest")
	}

	flow := api.flows.start(claims.Subject, flowSelector{svc: api.svc, userID: claims.Subject}, data.ReturnTo)
	return api.flowState(ctx, http.StatusCreated, claims, flow)
}

func (api *schoolApi) selectionState(ctx echo.Context) error {
	claims, flow, err := api.contextFlow(ctx)
	if err != nil {
		return err
	}
	return api.flowState(ctx, http.StatusOK, claims, flow)
}

func (api *schoolApi) selectSchool(ctx echo.Context) error {
	claims, flow, err := api.contextFlow(ctx)
	if err != nil {
		return err
	}

	var data SelectSchoolRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectSchoolRequest")
	}

	if err := flow.SelectSchool(ctx.Request().Context(), data.SchoolID); err != nil {
		switch errors.Cause(err) {
		case school.ErrSelectionInFlight:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case school.ErrFlowFinished:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case school.ErrNotMember:
			return errHttpForbidden
		case school.ErrNotFound:
			return errHttpNotFound
		}
		return errors.Wrap(err, "selecting school")
	}
	return api.flowState(ctx, http.StatusOK, claims, flow)
}

func (api *schoolApi) selectBranch(ctx echo.Context) error {
	claims, flow, err := api.contextFlow(ctx)
	if err != nil {
		return err
	}

	var data SelectBranchRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectBranchRequest")
	}

	returnTo, err := flow.SelectBranch(data.BranchID)
	if err != nil {
		switch errors.Cause(err) {
		case school.ErrUnknownBranch:
			return errHttpNotFound
		case school.ErrNoSchoolSelected:
			return errNoSchoolSelected
		case school.ErrFlowFinished:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "selecting branch")
	}
	return api.finishSelection(ctx, claims, flow, returnTo)
}

func (api *schoolApi) skipBranch(ctx echo.Context) error {
	claims, flow, err := api.contextFlow(ctx)
	if err != nil {
		return err
	}

	returnTo, err := flow.SkipBranch()
	if err != nil {
		switch errors.Cause(err) {
		case school.ErrNoSchoolSelected:
			return errNoSchoolSelected
		case school.ErrFlowFinished:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "skipping branch")
	}
	return api.finishSelection(ctx, claims, flow, returnTo)
}

func (api *schoolApi) backSelection(ctx echo.Context) error {
	claims, flow, err := api.contextFlow(ctx)
	if err != nil {
		return err
	}
	flow.Back()
	return api.flowState(ctx, http.StatusOK, claims, flow)
}

// quickSwitch changes the selected school outside the wizard, eg. from the
// portal's school switcher dropdown. It reissues a token scoped to the new
// school with no branch.
func (api *schoolApi) quickSwitch(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data SelectSchoolRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectSchoolRequest")
	}

	sel, err := api.svc.Select(ctx.Request().Context(), claims.Subject, claims.Selection(), data.SchoolID)
	if err != nil {
		switch errors.Cause(err) {
		case school.ErrNotMember:
			return errHttpForbidden
		case school.ErrNotFound:
			return errHttpNotFound
		}
		return errors.Wrap(err, "selecting school")
	}

	token, err := api.reissueToken(ctx, claims, sel)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SelectionResponse{Token: token, Selection: sel})
}

func (api *schoolApi) contextFlow(ctx echo.Context) (Claims, *school.Flow, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return Claims{}, nil, errors.Wrap(err, "getting context claims")
	}
	flow, ok := api.flows.get(claims.Subject)
	if !ok {
		return Claims{}, nil, errHttpNotFound
	}
	return claims, flow, nil
}

// finishSelection reissues a token scoped to the wizard's final selection and
// drops the flow; the portal then navigates to returnTo with the new token.
func (api *schoolApi) finishSelection(ctx echo.Context, claims Claims, flow *school.Flow, returnTo string) error {
	token, err := api.reissueToken(ctx, claims, flow.Selection())
	if err != nil {
		return err
	}
	api.flows.drop(claims.Subject)
	return ctx.JSON(http.StatusOK, SelectionResponse{
		Token:     token,
		Selection: flow.Selection(),
		ReturnTo:  returnTo,
	})
}

func (api *schoolApi) reissueToken(ctx echo.Context, claims Claims, sel school.Selection) (string, error) {
	usr, err := getContextUser(ctx, api.userSvc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	newClaims := GetUserClaims(api.conf, usr, sel, claims.OrigIssuedAt)
	token, err := GenerateToken(api.conf, newClaims)
	if err != nil {
		return "", errors.Wrap(err, "generating token")
	}
	setAuthCookie(ctx, api.conf, token)
	return token, nil
}

func (api *schoolApi) flowState(ctx echo.Context, code int, claims Claims, flow *school.Flow) error {
	state := FlowStateResponse{
		Step:        flow.Step().String(),
		Finished:    flow.Finished(),
		Highlighted: flow.Highlighted(),
		Selection:   flow.Selection(),
		Branches:    flow.Branches(),
		ReturnTo:    flow.ReturnTo(),
	}
	if state.Branches == nil {
		state.Branches = []school.Branch{}
	}

	// the school step always carries the user's selectable schools
	if flow.Step() == school.StepSchool {
		schools, err := api.svc.SchoolsFor(ctx.Request().Context(), claims.Subject)
		if err != nil {
			return errors.Wrap(err, "querying member schools")
		}
		if schools == nil {
			schools = []school.School{}
		}
		state.Schools = schools
	}
	return ctx.JSON(code, state)
}

type (
	AddMemberRequest struct {
		UserID    string `json:"user_id" validate:"required"`
		IsDefault bool   `json:"is_default"`
	}

	StartSelectionRequest struct {
		ReturnTo string `json:"return_to"`
	}

	SelectSchoolRequest struct {
		SchoolID string `json:"school_id" validate:"required"`
	}

	SelectBranchRequest struct {
		BranchID string `json:"branch_id" validate:"required"`
	}

	FlowStateResponse struct {
		Step        string           `json:"step"`
		Finished    bool             `json:"finished"`
		Highlighted string           `json:"highlighted,omitempty"`
		Selection   school.Selection `json:"selection"`
		Schools     []school.School  `json:"schools,omitempty"`
		Branches    []school.Branch  `json:"branches"`
		ReturnTo    string           `json:"return_to,omitempty"`
	}

	SelectionResponse struct {
		Token     string           `json:"token"`
		Selection school.Selection `json:"selection"`
		ReturnTo  string           `json:"return_to,omitempty"`
	}
)
