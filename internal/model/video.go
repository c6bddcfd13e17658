package model

import (
    "strings"
    "time"
)

// VideoStatus is the lifecycle state of a catalog entry. In practice it
// only moves forward: DRAFT → PUBLISHED → ARCHIVED.
type VideoStatus string

const (
    StatusDraft     VideoStatus = "DRAFT"
    StatusPublished VideoStatus = "PUBLISHED"
    StatusArchived  VideoStatus = "ARCHIVED"
)

// Valid reports whether s is a known status.
func (s VideoStatus) Valid() bool {
    switch s {
    case StatusDraft, StatusPublished, StatusArchived:
        return true
    }
    return false
}

// Video represents a playable asset in the `videos` table. Removal is soft:
// the row is archived and deactivated but stays readable by id.
//
// Fields:
//  ID              – auto-increment primary key.
//  Title           – display title.
//  Description     – optional long text.
//  URL             – playback location; s3://bucket/key URLs are presigned on read.
//  ThumbnailURL    – optional poster image.
//  Duration        – optional display string (MM:SS or HH:MM:SS).
//  DurationSeconds – optional total length used for completion maths.
//  Status          – DRAFT, PUBLISHED or ARCHIVED.
//  IsActive        – false after a soft delete.
//  Category        – optional free-form category.
//  Tags            – optional comma separated tags.
//  ViewCount       – aggregate watch events over all users.
//  FileSize        – optional size in bytes.
//  Resolution      – optional label such as 720p.
type Video struct {
    ID              uint64      // videos.id
    Title           string      // videos.title
    Description     *string     // videos.description (nullable)
    URL             string      // videos.url
    ThumbnailURL    *string     // videos.thumbnail_url (nullable)
    Duration        *string     // videos.duration (nullable)
    DurationSeconds *int        // videos.duration_seconds (nullable)
    Status          VideoStatus // videos.status
    IsActive        bool        // videos.is_active
    Category        *string     // videos.category (nullable)
    Tags            *string     // videos.tags (nullable)
    ViewCount       int         // videos.view_count
    FileSize        *int64      // videos.file_size (nullable)
    Resolution      *string     // videos.resolution (nullable)
    CreatedAt       time.Time   // videos.created_at
    UpdatedAt       time.Time   // videos.updated_at
}

// IsPublished is the visibility rule for entitled listings.
func (v Video) IsPublished() bool {
    return v.Status == StatusPublished && v.IsActive
}

// TagList splits the comma separated tags, dropping blanks.
func (v Video) TagList() []string {
    out := []string{}
    if v.Tags == nil {
        return out
    }
    for _, t := range strings.Split(*v.Tags, ",") {
        if t = strings.TrimSpace(t); t != "" {
            out = append(out, t)
        }
    }
    return out
}

// Archive applies the soft-delete transition.
func (v *Video) Archive() {
    v.Status = StatusArchived
    v.IsActive = false
}
