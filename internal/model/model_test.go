package model

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestUser_FullName(t *testing.T) {
    tests := []struct {
        name string
        user User
        want string
    }{
        {"both parts", User{Email: "a@x.com", FirstName: strPtr("Ana"), LastName: strPtr("Costa")}, "Ana Costa"},
        {"first only", User{Email: "a@x.com", FirstName: strPtr("Ana")}, "Ana"},
        {"last only", User{Email: "a@x.com", LastName: strPtr("Costa")}, "Costa"},
        {"blank parts fall back to email", User{Email: "a@x.com", FirstName: strPtr("  ")}, "a@x.com"},
        {"no name", User{Email: "a@x.com"}, "a@x.com"},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            assert.Equal(t, tt.want, tt.user.FullName())
        })
    }
}

func TestNormalizeEmailAndCode(t *testing.T) {
    assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
    assert.Equal(t, "K7QJ2M", NormalizeCode(" k7qj2m"))
}

func TestToken_IsValid(t *testing.T) {
    now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
    tok := Token{ExpiresAt: now.Add(time.Minute)}

    assert.True(t, tok.IsValid(now))
    assert.False(t, tok.IsValid(now.Add(time.Minute)), "expiry instant is already invalid")
    assert.False(t, tok.IsValid(now.Add(2*time.Minute)))

    tok.MarkUsed(now)
    assert.False(t, tok.IsValid(now))
    if assert.NotNil(t, tok.UsedAt) {
        assert.Equal(t, now, *tok.UsedAt)
    }
}

func TestTokenPurpose_Valid(t *testing.T) {
    assert.True(t, PurposeEmailLogin.Valid())
    assert.True(t, PurposePasswordReset.Valid())
    assert.False(t, TokenPurpose("SMS").Valid())
}

func TestVideo_IsPublished(t *testing.T) {
    assert.True(t, Video{Status: StatusPublished, IsActive: true}.IsPublished())
    assert.False(t, Video{Status: StatusPublished, IsActive: false}.IsPublished())
    assert.False(t, Video{Status: StatusDraft, IsActive: true}.IsPublished())

    v := Video{Status: StatusPublished, IsActive: true}
    v.Archive()
    assert.Equal(t, StatusArchived, v.Status)
    assert.False(t, v.IsActive)
}

func TestVideo_TagList(t *testing.T) {
    assert.Equal(t, []string{}, Video{}.TagList())
    assert.Equal(t, []string{"intro", "basics", "tutorial"}, Video{Tags: strPtr("intro, basics,,tutorial ")}.TagList())
}

func TestEntitlement_HasAccess(t *testing.T) {
    now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
    past := now.Add(-time.Second)
    future := now.Add(time.Hour)

    assert.True(t, Entitlement{IsActive: true}.HasAccess(now))
    assert.True(t, Entitlement{IsActive: true, ExpiresAt: &future}.HasAccess(now))
    assert.False(t, Entitlement{IsActive: true, ExpiresAt: &past}.HasAccess(now))
    assert.False(t, Entitlement{IsActive: false}.HasAccess(now))
}

func TestEntitlement_MarkViewed(t *testing.T) {
    first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
    second := first.Add(time.Hour)
    var e Entitlement

    e.MarkViewed(first)
    e.MarkViewed(second)

    assert.Equal(t, 2, e.ViewCount)
    assert.Equal(t, first, *e.FirstViewedAt)
    assert.Equal(t, second, *e.LastViewedAt)
}

func TestEntitlement_ApplyProgress(t *testing.T) {
    tests := []struct {
        name      string
        position  int
        total     int
        wantPct   float64
        completed bool
    }{
        {"exactly at threshold", 90, 100, 90, true},
        {"just below threshold", 89, 100, 89, false},
        {"rounds to nearest", 2, 3, 67, false},
        {"past the end is capped", 150, 100, 100, true},
        {"start", 0, 100, 0, false},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            var e Entitlement
            e.ApplyProgress(tt.position, tt.total)
            assert.Equal(t, tt.position, e.WatchPosition)
            assert.Equal(t, tt.wantPct, e.CompletionPercentage)
            assert.Equal(t, tt.completed, e.IsCompleted)
        })
    }
}

func TestEntitlement_ApplyProgress_UnknownDuration(t *testing.T) {
    e := Entitlement{CompletionPercentage: 40}
    e.ApplyProgress(30, 0)
    assert.Equal(t, 30, e.WatchPosition)
    assert.Equal(t, float64(40), e.CompletionPercentage)
}

func TestComputeStats(t *testing.T) {
    t.Run("no viewers", func(t *testing.T) {
        st := ComputeStats(nil)
        assert.Equal(t, VideoStats{}, st)

        st = ComputeStats([]Entitlement{{ViewCount: 0, WatchPosition: 0}})
        assert.Equal(t, float64(0), st.CompletionRate)
        assert.Equal(t, 0, st.UniqueViewers)
    })

    t.Run("mixed rows", func(t *testing.T) {
        rows := []Entitlement{
            {ViewCount: 3, WatchPosition: 100, IsCompleted: true},
            {ViewCount: 1, WatchPosition: 20},
            {ViewCount: 2, WatchPosition: 31},
            {ViewCount: 0, WatchPosition: 0},
        }
        st := ComputeStats(rows)
        assert.Equal(t, 6, st.TotalViews)
        assert.Equal(t, 3, st.UniqueViewers)
        assert.Equal(t, 33.33, st.CompletionRate)
        assert.Equal(t, 38, st.AverageWatchTime)
    })
}
