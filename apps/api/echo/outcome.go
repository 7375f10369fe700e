package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clotrack/core/outcome"
)

type outcomeApi struct {
	svc      *outcome.Service
	validate *validator.Validate
}

func registerOutcomeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := outcomeApi{svc: deps.OutcomeSvc, validate: deps.Validate}

	og := g.Group("/outcomes/:id", jwt)
	og.GET("", api.retrieve)
	og.POST("/submit", api.submit)

	// review endpoints
	og.POST("/approve", api.approve, adminMiddleware())
	og.POST("/rework", api.rework, adminMiddleware())
	og.POST("/nci", api.markNeverComingIn, adminMiddleware())
	og.POST("/reopen", api.reopen, adminMiddleware())
}

// Handlers

func (api *outcomeApi) retrieve(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	details, err := api.svc.GetOutcomeAuditDetails(ctx.Request().Context(), auth, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting outcome audit details")
	}
	return ctx.JSON(http.StatusOK, details)
}

func (api *outcomeApi) submit(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	var data SubmitRequest
	if err = bindOptional(ctx, &data); err != nil {
		return err
	}

	inst, err := api.svc.Submit(ctx.Request().Context(), auth, ctx.Param("id"), boolOr(data.NotifyAdmins, true))
	if err != nil {
		return errors.Wrap(err, "submitting outcome")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *outcomeApi) approve(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	inst, err := api.svc.Approve(ctx.Request().Context(), auth, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving outcome")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *outcomeApi) rework(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	var data ReworkRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReworkRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.RequestRework(ctx.Request().Context(), auth, ctx.Param("id"), data.Comments, boolOr(data.SendEmail, true))
	if err != nil {
		return errors.Wrap(err, "requesting rework")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *outcomeApi) markNeverComingIn(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	var data NeverComingInRequest
	if err = bindOptional(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	inst, err := api.svc.MarkNeverComingIn(ctx.Request().Context(), auth, ctx.Param("id"), data.Reason)
	if err != nil {
		return errors.Wrap(err, "marking outcome never coming in")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *outcomeApi) reopen(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	inst, err := api.svc.Reopen(ctx.Request().Context(), auth, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reopening outcome")
	}
	return ctx.JSON(http.StatusOK, inst)
}
