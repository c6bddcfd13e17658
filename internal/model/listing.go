package model

// VideoFilter narrows an entitled listing. Query matches title,
// description, category or tags case-insensitively; OrderBy is one of the
// SortFields keys and falls back to createdAt.
type VideoFilter struct {
    Query          string
    Category       string
    OrderBy        string
    OrderDirection string // ASC | DESC
    Limit          int
    Offset         int
}

// SortFields are the orderBy values a listing accepts.
var SortFields = []string{"createdAt", "updatedAt", "title", "viewCount", "durationSeconds", "category"}

// UserVideo pairs a visible video with the caller's entitlement snapshot.
type UserVideo struct {
    Video       Video
    Entitlement Entitlement
}

// Page is one slice of a larger result set.
type Page[T any] struct {
    Items []T
    Total int64
}
