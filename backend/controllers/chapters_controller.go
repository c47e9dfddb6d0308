package controllers

import (
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type ChaptersController struct {
	Chapters *services.ChapterService
}

func NewChaptersController(svc *services.Container) *ChaptersController {
	return &ChaptersController{Chapters: svc.Chapters}
}

// AddChapter добавляет главу в конец курса, если порядок не указан
func (hc *ChaptersController) AddChapter(c *fiber.Ctx) error {
	var input services.ChapterInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	chapter, err := hc.Chapters.CreateChapter(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, chapter)
}

func (hc *ChaptersController) UpdateChapter(c *fiber.Ctx) error {
	var input services.ChapterPatch
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	chapter, err := hc.Chapters.UpdateChapter(c.UserContext(), c.Params("id"), c.Params("chapterId"), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, chapter)
}

func (hc *ChaptersController) DeleteChapter(c *fiber.Ctx) error {
	if err := hc.Chapters.DeleteChapter(c.UserContext(), c.Params("id"), c.Params("chapterId")); err != nil {
		return utils.Fail(c, err)
	}
	return utils.NoContent(c)
}

func (hc *ChaptersController) ReorderChapters(c *fiber.Ctx) error {
	type ReorderInput struct {
		ChapterIDs []string `json:"chapterIds" validate:"required,min=1,dive,required"`
	}
	var input ReorderInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	chapters, err := hc.Chapters.ReorderChapters(c.UserContext(), c.Params("id"), input.ChapterIDs)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, chapters)
}
