package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clotrack/core/outcome"
)

type courseApi struct {
	svc *outcome.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{svc: deps.OutcomeSvc}

	g.GET("/sections/:id/status", api.sectionStatus, jwt)

	cg := g.Group("/courses/:id", jwt)
	cg.GET("/status", api.courseStatus)
	cg.GET("/validation", api.validate)
	cg.POST("/submit", api.submit)
}

// Handlers

func (api *courseApi) sectionStatus(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	section, err := api.svc.AuthorizeSection(rctx, auth, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "authorizing section")
	}
	status := api.svc.GetSectionAssessmentStatus(rctx, section.ID)
	return ctx.JSON(http.StatusOK, SectionStatusResponse{SectionID: section.ID, Status: string(status)})
}

func (api *courseApi) courseStatus(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	course, err := api.svc.AuthorizeCourse(rctx, auth, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "authorizing course")
	}
	return ctx.JSON(http.StatusOK, api.svc.GetCourseAssessmentStatus(rctx, course.ID))
}

func (api *courseApi) validate(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	course, err := api.svc.AuthorizeCourse(rctx, auth, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "authorizing course")
	}
	return ctx.JSON(http.StatusOK, api.svc.ValidateCourseSubmission(rctx, course.ID))
}

func (api *courseApi) submit(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.SubmitCourse(ctx.Request().Context(), auth, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting course")
	}
	if !res.Success {
		return ctx.JSON(http.StatusBadRequest, res)
	}
	return ctx.JSON(http.StatusOK, res)
}
