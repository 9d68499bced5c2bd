package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mediavault/internal/apperr"
	"mediavault/internal/models"
	"mediavault/internal/query"
)

type accountResponse struct {
	Account      string    `json:"account"`
	NumImages    int       `json:"numImages"`
	LastModified time.Time `json:"lastModified"`
}

type listResponse struct {
	Page   int                  `json:"page"`
	Limit  int                  `json:"limit"`
	Hits   int                  `json:"hits"`
	Images []models.ImageRecord `json:"images"`
}

func (h HandlerSet) Account(c *gin.Context) {
	account := c.Param("account")

	n, err := h.queries.Count(c.Request.Context(), account)
	if err != nil {
		h.fail(c, err)
		return
	}
	modified, err := h.queries.LastModified(c.Request.Context(), account, "")
	if err != nil {
		h.fail(c, err)
		return
	}

	setLastModified(c, modified)
	c.JSON(http.StatusOK, accountResponse{
		Account:      account,
		NumImages:    n,
		LastModified: modified,
	})
}

func (h HandlerSet) ListImages(c *gin.Context) {
	spec, err := parseQuerySpec(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	images, err := h.queries.Find(c.Request.Context(), c.Param("account"), spec)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, listResponse{
		Page:   spec.Page,
		Limit:  spec.PageSize,
		Hits:   len(images),
		Images: images,
	})
}

func parseQuerySpec(c *gin.Context) (models.QuerySpec, error) {
	const op = "query images"

	spec := models.QuerySpec{
		Page:     query.DefaultPage,
		PageSize: query.DefaultPageSize,
	}

	var err error
	if v := c.Query("page"); v != "" {
		if spec.Page, err = strconv.Atoi(v); err != nil {
			return spec, apperr.Validation(op, "page must be an integer")
		}
	}
	if v := c.Query("num"); v != "" {
		if spec.PageSize, err = strconv.Atoi(v); err != nil {
			return spec, apperr.Validation(op, "num must be an integer")
		}
	}
	if spec.From, err = unixParam(c, "from"); err != nil {
		return spec, apperr.Validation(op, "from must be a unix timestamp")
	}
	if spec.To, err = unixParam(c, "to"); err != nil {
		return spec, apperr.Validation(op, "to must be a unix timestamp")
	}
	if v := c.Query("metadataQuery"); v != "" {
		if err := json.Unmarshal([]byte(v), &spec.MetadataQuery); err != nil || spec.MetadataQuery == nil {
			return spec, apperr.Validation(op, "metadataQuery must be a JSON object")
		}
	}
	if v := c.Query("returnMetadata"); v != "" {
		if spec.ReturnMetadata, err = strconv.ParseBool(v); err != nil {
			return spec, apperr.Validation(op, "returnMetadata must be a boolean")
		}
	}
	return spec, nil
}

func unixParam(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	t := time.Unix(secs, 0).UTC()
	return &t, nil
}
