package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mediavault/internal/apperr"
	"mediavault/internal/models"
	"mediavault/internal/service"
)

type storedResponse struct {
	ImageIdentifier string `json:"imageIdentifier"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Extension       string `json:"extension"`
}

func (h HandlerSet) StoreImage(c *gin.Context) {
	account := c.Param("account")
	identifier := c.Param("identifier")

	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.HTTP.MaxUploadBytes)
	content, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": errorBody{
				Code:    http.StatusRequestEntityTooLarge,
				Kind:    apperr.KindValidation.String(),
				Message: "image too large",
			}})
			return
		}
		h.fail(c, apperr.Validation("store image", "unable to read request body"))
		return
	}

	rec, err := h.uploads.Upload(c.Request.Context(), account, identifier, content)
	if err != nil {
		h.fail(c, err)
		return
	}

	setLastModified(c, rec.Updated)
	c.JSON(http.StatusCreated, storedResponse{
		ImageIdentifier: rec.Identifier,
		Width:           rec.Width,
		Height:          rec.Height,
		Extension:       rec.Extension,
	})
}

// GetImage serves the stored image, or a rendition of it when t[] is given.
// An identifier such as "<hash>.jpg" that is not stored as such is read as
// "<hash>" converted to jpg.
func (h HandlerSet) GetImage(c *gin.Context) {
	req := service.RenderRequest{
		Account:         c.Param("account"),
		Identifier:      c.Param("identifier"),
		Transformations: transformations(c),
	}

	rendition, err := h.renders.Render(c.Request.Context(), req)
	if apperr.Is(err, apperr.KindNotFound) {
		if hash, ext, ok := service.ParseIdentifier(req.Identifier); ok && ext != "" {
			req.Identifier = hash
			req.Extension = ext
			rendition, err = h.renders.Render(c.Request.Context(), req)
		}
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	setOriginalHeaders(c, rendition.Record)
	if rendition.Cached {
		c.Header("X-Media-Cache", "hit")
	}
	c.Data(http.StatusOK, rendition.Mime, rendition.Blob)
}

func (h HandlerSet) HeadImage(c *gin.Context) {
	rec, err := h.images.Record(c.Request.Context(), c.Param("account"), c.Param("identifier"))
	if err != nil {
		h.fail(c, err)
		return
	}

	setOriginalHeaders(c, rec)
	c.Header("Content-Type", rec.Mime)
	c.Header("Content-Length", strconv.FormatInt(rec.Size, 10))
	c.Status(http.StatusOK)
}

func (h HandlerSet) DeleteImage(c *gin.Context) {
	identifier := c.Param("identifier")
	if err := h.images.Delete(c.Request.Context(), c.Param("account"), identifier); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imageIdentifier": identifier})
}

func transformations(c *gin.Context) []string {
	chain := c.QueryArray("t[]")
	return append(chain, c.QueryArray("t")...)
}

func setOriginalHeaders(c *gin.Context, rec models.ImageRecord) {
	setLastModified(c, rec.Updated)
	c.Header("X-Media-Original-Width", strconv.Itoa(rec.Width))
	c.Header("X-Media-Original-Height", strconv.Itoa(rec.Height))
	c.Header("X-Media-Original-Mime", rec.Mime)
}
