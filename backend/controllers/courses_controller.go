package controllers

import (
	"fmt"

	"coursemarket/backend/middleware"
	"coursemarket/backend/models"
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type CoursesController struct {
	Catalog    *services.CatalogService
	Chapters   *services.ChapterService
	Enrollment *services.EnrollmentService
	Transfer   *services.TransferService
}

func NewCoursesController(svc *services.Container) *CoursesController {
	return &CoursesController{
		Catalog:    svc.Catalog,
		Chapters:   svc.Chapters,
		Enrollment: svc.Enrollment,
		Transfer:   svc.Transfer,
	}
}

// [+] GetCourses godoc
// @Summary List published courses
// @Description Newest first, optionally filtered by q, category and level
// @Tags courses
// @Produce json
// @Param q query string false "Search text"
// @Param category query string false "Category"
// @Param level query string false "Level"
// @Success 200 {object} utils.SuccessResponse
// @Router /courses [get]
func (cc *CoursesController) GetCourses(c *fiber.Ctx) error {
	courses, err := cc.Catalog.SearchCourses(c.UserContext(), services.CourseFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Level:    c.Query("level"),
	})
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, courses)
}

// GetCourse возвращает описание курса. Черновики видны только администраторам.
func (cc *CoursesController) GetCourse(c *fiber.Ctx) error {
	course, err := cc.Catalog.GetCourseByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.Fail(c, err)
	}
	if course.Status != models.CourseStatusPublished && !middleware.IsAdmin(c) {
		return utils.NotFound(c, fmt.Sprintf("course %s not found", course.ID))
	}
	return utils.Success(c, fiber.StatusOK, course)
}

func (cc *CoursesController) GetCourseBySlug(c *fiber.Ctx) error {
	course, err := cc.Catalog.GetCourseBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return utils.Fail(c, err)
	}
	if course.Status != models.CourseStatusPublished && !middleware.IsAdmin(c) {
		return utils.NotFound(c, fmt.Sprintf("course %q not found", course.Slug))
	}
	return utils.Success(c, fiber.StatusOK, course)
}

func (cc *CoursesController) canReadContent(c *fiber.Ctx, courseID string) (bool, error) {
	if middleware.IsAdmin(c) {
		return true, nil
	}
	return cc.Enrollment.IsEnrolled(c.UserContext(), middleware.CurrentUser(c).ID, courseID)
}

// GetChapters возвращает главы курса. Нужна запись на курс или права администратора.
func (cc *CoursesController) GetChapters(c *fiber.Ctx) error {
	courseID := c.Params("id")
	ok, err := cc.canReadContent(c, courseID)
	if err != nil {
		return utils.Fail(c, err)
	}
	if !ok {
		return utils.Forbidden(c, "Enroll in this course to view its chapters")
	}
	chapters, err := cc.Chapters.GetChapters(c.UserContext(), courseID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, chapters)
}

func (cc *CoursesController) GetChapter(c *fiber.Ctx) error {
	courseID := c.Params("id")
	ok, err := cc.canReadContent(c, courseID)
	if err != nil {
		return utils.Fail(c, err)
	}
	if !ok {
		return utils.Forbidden(c, "Enroll in this course to view its chapters")
	}
	chapter, err := cc.Chapters.GetChapter(c.UserContext(), courseID, c.Params("chapterId"))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"chapter": chapter,
		"videos":  models.VideoRefs(chapter.Content),
	})
}

// Администрирование

func (cc *CoursesController) GetAllCourses(c *fiber.Ctx) error {
	courses, err := cc.Catalog.GetAllCourses(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, courses)
}

// CreateCourse создает новый курс (черновик по умолчанию)
func (cc *CoursesController) CreateCourse(c *fiber.Ctx) error {
	var input services.CourseInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	course, err := cc.Catalog.CreateCourse(c.UserContext(), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, course)
}

func (cc *CoursesController) UpdateCourse(c *fiber.Ctx) error {
	var input services.CoursePatch
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	course, err := cc.Catalog.UpdateCourse(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, course)
}

func (cc *CoursesController) UpdateCourseStatus(c *fiber.Ctx) error {
	type StatusInput struct {
		Status string `json:"status" validate:"required,oneof=draft published"`
	}
	var input StatusInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	course, err := cc.Catalog.UpdateCourseStatus(c.UserContext(), c.Params("id"), input.Status)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, course)
}

func (cc *CoursesController) DeleteCourse(c *fiber.Ctx) error {
	if err := cc.Catalog.DeleteCourse(c.UserContext(), c.Params("id")); err != nil {
		return utils.Fail(c, err)
	}
	return utils.NoContent(c)
}

// ExportCourse отдает курс с главами как JSON-файл
func (cc *CoursesController) ExportCourse(c *fiber.Ctx) error {
	snap, err := cc.Transfer.ExportCourse(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.Fail(c, err)
	}
	name := snap.Slug
	if name == "" {
		name = "course"
	}
	c.Attachment(name + ".json")
	return c.JSON(snap)
}

func (cc *CoursesController) ImportCourse(c *fiber.Ctx) error {
	snap, err := services.ParseSnapshot(c.Body())
	if err != nil {
		return utils.Fail(c, err)
	}
	course, err := cc.Transfer.ImportCourse(c.UserContext(), snap)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, course)
}

func (cc *CoursesController) ExportBackup(c *fiber.Ctx) error {
	backup, err := cc.Transfer.ExportBackup(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	c.Attachment("courses-backup-" + backup.ExportedAt.Format("2006-01-02") + ".json")
	return c.JSON(backup)
}

func (cc *CoursesController) RestoreBackup(c *fiber.Ctx) error {
	backup, err := services.ParseBackup(c.Body())
	if err != nil {
		return utils.Fail(c, err)
	}
	result, err := cc.Transfer.RestoreBackup(c.UserContext(), backup)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, result)
}
