package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"mediavault/internal/apperr"
	"mediavault/internal/models"
)

func (h HandlerSet) GetMetadata(c *gin.Context) {
	md, err := h.metadata.Get(c.Request.Context(), c.Param("account"), c.Param("identifier"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

func (h HandlerSet) UpdateMetadata(c *gin.Context) {
	patch, ok := h.bindMetadata(c, "update metadata")
	if !ok {
		return
	}
	account, identifier := c.Param("account"), c.Param("identifier")
	if err := h.metadata.Update(c.Request.Context(), account, identifier, patch); err != nil {
		h.fail(c, err)
		return
	}
	h.respondMetadata(c, account, identifier)
}

func (h HandlerSet) ReplaceMetadata(c *gin.Context) {
	md, ok := h.bindMetadata(c, "replace metadata")
	if !ok {
		return
	}
	account, identifier := c.Param("account"), c.Param("identifier")
	if err := h.metadata.Replace(c.Request.Context(), account, identifier, md); err != nil {
		h.fail(c, err)
		return
	}
	h.respondMetadata(c, account, identifier)
}

func (h HandlerSet) DeleteMetadata(c *gin.Context) {
	if err := h.metadata.Delete(c.Request.Context(), c.Param("account"), c.Param("identifier")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Metadata{})
}

// bindMetadata accepts only a JSON object; arrays and scalars are rejected.
func (h HandlerSet) bindMetadata(c *gin.Context, op string) (models.Metadata, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		h.fail(c, apperr.Validation(op, "unable to read request body"))
		return nil, false
	}
	var md models.Metadata
	if err := json.Unmarshal(raw, &md); err != nil || md == nil {
		h.fail(c, apperr.Validation(op, "metadata must be a JSON object"))
		return nil, false
	}
	return md, true
}

func (h HandlerSet) respondMetadata(c *gin.Context, account, identifier string) {
	md, err := h.metadata.Get(c.Request.Context(), account, identifier)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}
