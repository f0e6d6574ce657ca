package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/bursary/core/course"
)

type courseApi struct {
	svc *course.Service
}

func registerCourseAPI(g *echo.Group, svc *course.Service) {
	api := courseApi{svc: svc}

	g.GET("/faculties", api.queryFaculties)

	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.POST("", api.create, requireAdmin)
	cg.PUT("/:id", api.update, requireAdmin)
	cg.DELETE("/:id", api.destroy, requireAdmin)
}

type CourseList struct {
	Success      bool            `json:"success"`
	TotalCourses int             `json:"total_courses"`
	Courses      []course.Course `json:"courses"`
}

func (api *courseApi) queryFaculties(ctx echo.Context) error {
	faculties, err := api.svc.QueryFaculties(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying faculties")
	}
	return ctx.JSON(http.StatusOK, faculties)
}

// query lists courses; without an explicit faculty filter, a signed-in student only sees their faculty's courses.
func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	if p, ok := optionalPrincipal(ctx); ok && filter.FacultyID == "" && !p.IsAdmin {
		filter.FacultyID = p.User.FacultyID
	}

	courses, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, CourseList{Success: true, TotalCourses: len(courses), Courses: courses})
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	crs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	c := ctx.Request().Context()
	crs, err := api.svc.Get(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}

	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	if crs, err = api.svc.Update(c, crs, data); err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}
