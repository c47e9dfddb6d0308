package controllers

import (
	"coursemarket/backend/storage"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
)

const maxThumbnailBytes = 10 << 20

type UploadController struct {
	Store storage.BlobStore
}

func NewUploadController(store storage.BlobStore) *UploadController {
	return &UploadController{Store: store}
}

// UploadThumbnail принимает изображение (поле file), уменьшает до 1280x720 и сохраняет
func (uc *UploadController) UploadThumbnail(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return utils.BadRequest(c, "Missing file")
	}
	if fh.Size > maxThumbnailBytes {
		return utils.BadRequest(c, "Image is larger than 10MB")
	}
	src, err := fh.Open()
	if err != nil {
		return utils.BadRequest(c, "Cannot read file")
	}
	defer src.Close()

	thumb, err := storage.ResizeThumbnail(src)
	if err != nil {
		return utils.BadRequest(c, "File is not a supported image")
	}
	key := storage.ObjectKey("thumbnails", fh.Filename)
	url, err := uc.Store.Upload(c.UserContext(), key+".jpg", "image/jpeg", thumb)
	if err != nil {
		return utils.Fail(c, utils.InternalError("upload thumbnail", err))
	}
	return utils.Created(c, fiber.Map{"url": url, "key": key + ".jpg"})
}
