package query

import (
	"math"
	"strings"

	"mediavault/internal/apperr"
	"mediavault/internal/models"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

// Build compiles spec into the canonical filter for account along with the
// paging derived from it. Results are always sorted newest first.
func Build(account string, spec models.QuerySpec) (models.CanonicalQuery, models.Paging, error) {
	const op = "build query"

	if strings.TrimSpace(account) == "" {
		return models.CanonicalQuery{}, models.Paging{}, apperr.Validation(op, "account required")
	}
	if spec.Page < 1 {
		return models.CanonicalQuery{}, models.Paging{}, apperr.Validation(op, "page must be at least 1")
	}
	if spec.PageSize < 1 {
		return models.CanonicalQuery{}, models.Paging{}, apperr.Validation(op, "num must be positive")
	}
	if spec.PageSize > MaxPageSize {
		return models.CanonicalQuery{}, models.Paging{}, apperr.Validation(op, "num too large")
	}
	if spec.Page-1 > math.MaxInt/spec.PageSize {
		return models.CanonicalQuery{}, models.Paging{}, apperr.Validation(op, "page too large")
	}

	canonical := models.CanonicalQuery{
		Account:     account,
		AddedAfter:  spec.From,
		AddedBefore: spec.To,
	}
	if len(spec.MetadataQuery) > 0 {
		canonical.Metadata = spec.MetadataQuery
	}

	return canonical, models.Paging{
		Sort:  models.SortAddedDesc,
		Limit: spec.PageSize,
		Skip:  Skip(spec.Page, spec.PageSize),
	}, nil
}

// Skip is the number of records before page. It saturates at math.MaxInt
// instead of wrapping.
func Skip(page, pageSize int) int {
	if page <= 1 || pageSize <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return pageSize * (page - 1)
}
