package catalog

import (
	"refboard/internal/color"
)

// UnorderedPosition is the sort key given to images without a gallery
// position. It sorts before position 0, so new imports lead the gallery.
const UnorderedPosition = -1

// Image is one catalog entry.
type Image struct {
	RowID         int64      `json:"rowid"`
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	RelativePath  string     `json:"relativePath"`
	CreatedAt     int64      `json:"createdAt"`
	PageURL       *string    `json:"pageUrl,omitempty"`
	DominantColor *string    `json:"dominantColor,omitempty"`
	Color         *color.LCH `json:"color,omitempty"`
	Tone          *string    `json:"tone,omitempty"`
	GalleryOrder  *int64     `json:"galleryOrder,omitempty"`
	Tags          []string   `json:"tags"`
}

// orderKey is the value the list ordering sorts on.
func (img *Image) orderKey() int64 {
	if img.GalleryOrder == nil {
		return UnorderedPosition
	}
	return *img.GalleryOrder
}

// Row is a query result. Distance and Score are set only by vector search;
// Score is 1 - Distance, so higher is more similar.
type Row struct {
	Image
	Distance *float64 `json:"distance,omitempty"`
	Score    *float64 `json:"score,omitempty"`
}

// ListCursor resumes a gallery listing after the given row.
type ListCursor struct {
	OrderKey  int64 `json:"orderKey"`
	CreatedAt int64 `json:"createdAt"`
	RowID     int64 `json:"rowid"`
}

// TextCursor resumes a text search after the given row.
type TextCursor struct {
	CreatedAt int64 `json:"createdAt"`
	RowID     int64 `json:"rowid"`
}

// VectorCursor resumes a vector search after the given row.
type VectorCursor struct {
	Distance float64 `json:"distance"`
	RowID    int64   `json:"rowid"`
}

// Page is one page of results. Next is nil on the last page.
type Page[C any] struct {
	Items []Row `json:"items"`
	Next  *C    `json:"next,omitempty"`
}

// Filter narrows any query shape. Nil or empty fields match everything.
type Filter struct {
	// Tags must all be present on a row. Unknown names match nothing.
	Tags []string
	// Tone is an exact tone label.
	Tone *string
	// Color is a hex color compared with the configured similarity gate.
	Color *string
}

// ListOptions selects a page of the gallery.
type ListOptions struct {
	Filter
	Limit int
	After *ListCursor
}

// TextSearchOptions selects a page of substring matches on filename and path.
type TextSearchOptions struct {
	Filter
	Query string
	Limit int
	After *TextCursor
}

// VectorSearchOptions selects a page of nearest neighbors of Vector.
type VectorSearchOptions struct {
	Filter
	Vector []float32
	Limit  int
	After  *VectorCursor
}

// Optional distinguishes "leave unchanged" (zero value) from "set", where a
// nil Value sets the field to NULL.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns an Optional that sets the field to v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns an Optional that clears the field.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// NewImage describes an image to insert. An empty ID gets a generated UUID
// and a zero CreatedAt means now.
type NewImage struct {
	ID            string
	Filename      string
	RelativePath  string
	CreatedAt     int64
	PageURL       *string
	DominantColor *string
	Tone          *string
	Tags          []string
}

// ImagePatch updates the mutable descriptive fields of an image.
type ImagePatch struct {
	PageURL       Optional[string]
	DominantColor Optional[string]
	Tone          Optional[string]
}

// TagCount is a tag and how many images use it.
type TagCount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarizes the catalog.
type Stats struct {
	TotalImages   int  `json:"totalImages"`
	OrderedImages int  `json:"orderedImages"`
	TotalTags     int  `json:"totalTags"`
	TotalVectors  int  `json:"totalVectors"`
	IndexReady    bool `json:"indexReady"`
}
