package model

import (
    "math"
    "time"
)

// AccessType is the reason a user holds an entitlement.
type AccessType string

const (
    AccessAssigned  AccessType = "ASSIGNED"
    AccessPurchased AccessType = "PURCHASED"
    AccessTrial     AccessType = "TRIAL"
    AccessAdmin     AccessType = "ADMIN"
)

// Valid reports whether a is a known access type.
func (a AccessType) Valid() bool {
    switch a {
    case AccessAssigned, AccessPurchased, AccessTrial, AccessAdmin:
        return true
    }
    return false
}

// CompletionThreshold is the percentage at which a video counts as watched.
const CompletionThreshold = 90

// Entitlement links one user to one video (`user_videos` table, unique on
// user_id + video_id). Re-granting updates the row; revoking clears
// IsActive but keeps the watch history.
type Entitlement struct {
    ID                   string     // user_videos.id
    UserID               string     // user_videos.user_id
    VideoID              uint64     // user_videos.video_id
    AccessType           AccessType // user_videos.access_type
    ExpiresAt            *time.Time // user_videos.expires_at (nil = never)
    IsActive             bool       // user_videos.is_active
    FirstViewedAt        *time.Time // user_videos.first_viewed_at
    LastViewedAt         *time.Time // user_videos.last_viewed_at
    ViewCount            int        // user_videos.view_count
    WatchPosition        int        // user_videos.watch_position (seconds)
    CompletionPercentage float64    // user_videos.completion_percentage (0-100)
    IsCompleted          bool       // user_videos.is_completed
    GrantedBy            *string    // user_videos.granted_by
    Notes                *string    // user_videos.notes
    CreatedAt            time.Time  // user_videos.created_at
    UpdatedAt            time.Time  // user_videos.updated_at
}

// IsExpired reports whether an expiry is set and has passed.
func (e Entitlement) IsExpired(now time.Time) bool {
    return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// HasAccess: active and either no expiry or an expiry in the future.
func (e Entitlement) HasAccess(now time.Time) bool {
    return e.IsActive && !e.IsExpired(now)
}

// MarkViewed records one watch event.
func (e *Entitlement) MarkViewed(now time.Time) {
    e.ViewCount++
    at := now
    e.LastViewedAt = &at
    if e.FirstViewedAt == nil {
        first := now
        e.FirstViewedAt = &first
    }
}

// ApplyProgress stores the watch position and recomputes completion against
// the total duration. A non-positive total leaves the percentage untouched.
func (e *Entitlement) ApplyProgress(position, totalSeconds int) {
    e.WatchPosition = position
    if totalSeconds <= 0 {
        return
    }
    pct := math.Round(float64(position) / float64(totalSeconds) * 100)
    e.CompletionPercentage = math.Min(math.Max(pct, 0), 100)
    e.IsCompleted = e.CompletionPercentage >= CompletionThreshold
}

// VideoStats aggregates entitlement rows for reporting.
type VideoStats struct {
    TotalViews       int     `json:"totalViews"`
    UniqueViewers    int     `json:"uniqueViewers"`
    CompletionRate   float64 `json:"completionRate"`
    AverageWatchTime int     `json:"averageWatchTime"`
}

// ComputeStats sums view counts, counts viewers (view count > 0), divides
// completed rows by viewers and averages the watch positions of every row.
func ComputeStats(rows []Entitlement) VideoStats {
    var st VideoStats
    completed, positions := 0, 0
    for _, r := range rows {
        st.TotalViews += r.ViewCount
        if r.ViewCount > 0 {
            st.UniqueViewers++
        }
        if r.IsCompleted {
            completed++
        }
        positions += r.WatchPosition
    }
    if st.UniqueViewers > 0 {
        rate := float64(completed) / float64(st.UniqueViewers) * 100
        st.CompletionRate = math.Round(rate*100) / 100
    }
    if len(rows) > 0 {
        st.AverageWatchTime = int(math.Round(float64(positions) / float64(len(rows))))
    }
    return st
}
