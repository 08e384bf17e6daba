// Package types contains PUBLIC aliases for internal request/response structs.
//
// NOTE: This package uses type aliases to internal definitions
// as a temporary measure. This should be revisited
// during a proper refactoring to define stable public types.
package types

import (
	internaltypes "github.com/eresh-mittal/ImageProc/internal/types"
)

// SlugResponse represents a response containing a slug and potentially data (public alias).
type SlugResponse = internaltypes.SlugResponse

// Slug is a type alias for internaltypes.Slug.
type Slug = internaltypes.Slug

// Slug constants (public aliases)
const (
	SuccessSlug      Slug = internaltypes.SuccessSlug
	ErrorSlug        Slug = internaltypes.ErrorSlug
	InvalidInputSlug Slug = internaltypes.InvalidInputSlug
	ServerErrorSlug  Slug = internaltypes.ServerErrorSlug
	NotFoundSlug     Slug = internaltypes.NotFoundSlug
)
