package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/repository"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type clock struct{ at time.Time }

func (c *clock) now() time.Time          { return c.at }
func (c *clock) advance(d time.Duration) { c.at = c.at.Add(d) }

func discardLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func ptr[T any](v T) *T { return &v }

func codeSeq(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*model.User{}} }

func (m *memUsers) add(u model.User) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = model.NormalizeEmail(u.Email)
	m.byID[u.ID] = &u
	return u
}

func (m *memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return *u, nil
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memUsers) findEmail(email string) *model.User {
	for _, u := range m.byID {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.findEmail(email); u != nil && u.IsActive {
		return *u, nil
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memUsers) FindOrCreateByEmail(ctx context.Context, email string) (model.User, bool, error) {
	m.mu.Lock()
	u := m.findEmail(email)
	m.mu.Unlock()
	if u != nil {
		if !u.IsActive {
			return model.User{}, false, repository.ErrUserInactive
		}
		return *u, false, nil
	}
	return m.add(model.User{Email: email, IsActive: true, CreatedAt: t0}), true, nil
}

func (m *memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	exists := m.findEmail(model.NormalizeEmail(u.Email)) != nil
	m.mu.Unlock()
	if exists {
		return repository.ErrEmailExists
	}
	u.CreatedAt = t0
	*u = m.add(*u)
	return nil
}

func (m *memUsers) Update(_ context.Context, id string, firstName, lastName *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.IsActive {
		return repository.ErrUserNotFound
	}
	u.FirstName, u.LastName = firstName, lastName
	return nil
}

func (m *memUsers) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.IsActive {
		return repository.ErrUserNotFound
	}
	u.IsActive = false
	return nil
}

func (m *memUsers) Search(_ context.Context, query string, limit, offset int) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	var hits []model.User
	for _, u := range m.byID {
		if !u.IsActive {
			continue
		}
		if strings.Contains(u.Email, q) || strings.Contains(strings.ToLower(u.FullName()), q) {
			hits = append(hits, *u)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Email < hits[j].Email })
	total := int64(len(hits))
	if offset >= len(hits) {
		return []model.User{}, total, nil
	}
	hits = hits[offset:]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, total, nil
}

func (m *memUsers) CountActive(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.byID {
		if u.IsActive {
			n++
		}
	}
	return n, nil
}

type memTokens struct {
	users  *memUsers
	rows   []*model.Token
	failOn string
}

func (m *memTokens) Create(_ context.Context, t *model.Token) error {
	if m.failOn == "create" {
		return fmt.Errorf("db down")
	}
	t.ID = uuid.NewString()
	cp := *t
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memTokens) FindUnusedByCode(_ context.Context, userID, code string, purpose model.TokenPurpose) (model.Token, error) {
	for _, t := range m.rows {
		if t.UserID == userID && t.Code == code && t.Purpose == purpose && !t.IsUsed {
			return *t, nil
		}
	}
	return model.Token{}, repository.ErrTokenNotFound
}

func (m *memTokens) MarkUsed(_ context.Context, id string, at time.Time) error {
	for _, t := range m.rows {
		if t.ID == id && !t.IsUsed {
			t.MarkUsed(at)
			return nil
		}
	}
	return repository.ErrTokenNotFound
}

func (m *memTokens) InvalidateOutstanding(_ context.Context, userID string, purpose model.TokenPurpose, at time.Time) (int64, error) {
	var n int64
	for _, t := range m.rows {
		if t.UserID == userID && t.Purpose == purpose && !t.IsUsed {
			t.MarkUsed(at)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) CountRecentByEmail(_ context.Context, email string, since time.Time) (int, error) {
	n := 0
	for _, t := range m.rows {
		u := m.users.byID[t.UserID]
		if u != nil && u.Email == email && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	if m.failOn == "delete" {
		return 0, fmt.Errorf("db down")
	}
	kept := m.rows[:0]
	var n int64
	for _, t := range m.rows {
		if t.IsExpired(now) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	m.rows = kept
	return n, nil
}

func (m *memTokens) Stats(_ context.Context, midnight, now time.Time) (model.AuthStats, error) {
	var st model.AuthStats
	for _, t := range m.rows {
		if t.CreatedAt.Before(midnight) {
			continue
		}
		st.TotalTokensToday++
		if t.IsUsed {
			st.SuccessfulLoginsToday++
		} else if t.IsExpired(now) {
			st.AbandonedTokens++
		}
	}
	return st, nil
}

type memVideos struct {
	rows    map[uint64]*model.Video
	nextID  uint64
	failInc bool
}

func newMemVideos() *memVideos { return &memVideos{rows: map[uint64]*model.Video{}} }

func (m *memVideos) add(v model.Video) model.Video {
	_ = m.Create(context.Background(), &v)
	return v
}

func (m *memVideos) Create(_ context.Context, v *model.Video) error {
	m.nextID++
	v.ID = m.nextID
	if v.CreatedAt.IsZero() {
		v.CreatedAt = t0.Add(time.Duration(v.ID) * time.Minute)
	}
	cp := *v
	m.rows[v.ID] = &cp
	return nil
}

func (m *memVideos) GetByID(_ context.Context, id uint64) (model.Video, error) {
	if v, ok := m.rows[id]; ok {
		return *v, nil
	}
	return model.Video{}, repository.ErrVideoNotFound
}

func (m *memVideos) Update(_ context.Context, v *model.Video) error {
	cur, ok := m.rows[v.ID]
	if !ok {
		return repository.ErrVideoNotFound
	}
	views := cur.ViewCount
	cp := *v
	cp.ViewCount = views
	m.rows[v.ID] = &cp
	return nil
}

func (m *memVideos) SoftDelete(_ context.Context, id uint64) error {
	v, ok := m.rows[id]
	if !ok {
		return repository.ErrVideoNotFound
	}
	v.Archive()
	return nil
}

func (m *memVideos) sorted(keep func(model.Video) bool) []model.Video {
	var out []model.Video
	for _, v := range m.rows {
		if keep(*v) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func window[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func (m *memVideos) ListAll(_ context.Context, includeArchived bool, limit, offset int) ([]model.Video, int64, error) {
	all := m.sorted(func(v model.Video) bool { return includeArchived || v.Status != model.StatusArchived })
	return window(all, limit, offset), int64(len(all)), nil
}

func (m *memVideos) Search(_ context.Context, q string, limit, offset int) ([]model.Video, int64, error) {
	q = strings.ToLower(q)
	all := m.sorted(func(v model.Video) bool {
		return v.IsActive && strings.Contains(strings.ToLower(v.Title), q)
	})
	return window(all, limit, offset), int64(len(all)), nil
}

func (m *memVideos) IncrementViewCount(_ context.Context, id uint64) error {
	if m.failInc {
		return fmt.Errorf("db down")
	}
	v, ok := m.rows[id]
	if !ok {
		return repository.ErrVideoNotFound
	}
	v.ViewCount++
	return nil
}

func (m *memVideos) Categories(context.Context) ([]string, error) {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range m.sorted(func(v model.Video) bool { return v.IsPublished() && v.Category != nil }) {
		if !seen[*v.Category] {
			seen[*v.Category] = true
			out = append(out, *v.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

type pairKey struct {
	user  string
	video uint64
}

type memEntitlements struct {
	videos *memVideos
	rows   map[pairKey]*model.Entitlement
	// leaky makes ListForUser ignore the visibility rules.
	leaky bool
}

func newMemEntitlements(v *memVideos) *memEntitlements {
	return &memEntitlements{videos: v, rows: map[pairKey]*model.Entitlement{}}
}

func (m *memEntitlements) Get(_ context.Context, userID string, videoID uint64) (model.Entitlement, error) {
	if e, ok := m.rows[pairKey{userID, videoID}]; ok {
		return *e, nil
	}
	return model.Entitlement{}, repository.ErrEntitlementNotFound
}

func (m *memEntitlements) GetWithVideo(ctx context.Context, userID string, videoID uint64) (model.UserVideo, error) {
	e, err := m.Get(ctx, userID, videoID)
	if err != nil {
		return model.UserVideo{}, err
	}
	return model.UserVideo{Video: *m.videos.rows[videoID], Entitlement: e}, nil
}

func (m *memEntitlements) ListForUser(_ context.Context, userID string, f model.VideoFilter, now time.Time) ([]model.UserVideo, int64, error) {
	var all []model.UserVideo
	for k, e := range m.rows {
		if k.user != userID {
			continue
		}
		v := *m.videos.rows[k.video]
		if !m.leaky && (!e.HasAccess(now) || !v.IsPublished()) {
			continue
		}
		if f.Category != "" && (v.Category == nil || *v.Category != f.Category) {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(v.Title), strings.ToLower(f.Query)) {
			continue
		}
		all = append(all, model.UserVideo{Video: v, Entitlement: *e})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Video.ID > all[j].Video.ID })
	return window(all, f.Limit, f.Offset), int64(len(all)), nil
}

func (m *memEntitlements) Upsert(_ context.Context, e *model.Entitlement) error {
	e.IsActive = true
	k := pairKey{e.UserID, e.VideoID}
	if cur, ok := m.rows[k]; ok {
		cur.AccessType, cur.ExpiresAt, cur.GrantedBy, cur.Notes, cur.IsActive = e.AccessType, e.ExpiresAt, e.GrantedBy, e.Notes, true
		*e = *cur
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	cp := *e
	m.rows[k] = &cp
	return nil
}

func (m *memEntitlements) SaveProgress(_ context.Context, e *model.Entitlement) error {
	for _, cur := range m.rows {
		if cur.ID != e.ID {
			continue
		}
		cur.ViewCount++
		if cur.FirstViewedAt == nil {
			cur.FirstViewedAt = e.FirstViewedAt
		}
		cur.LastViewedAt = e.LastViewedAt
		cur.WatchPosition = e.WatchPosition
		cur.CompletionPercentage = e.CompletionPercentage
		cur.IsCompleted = e.IsCompleted
		return nil
	}
	return repository.ErrEntitlementNotFound
}

func (m *memEntitlements) Deactivate(_ context.Context, userID string, videoID uint64) error {
	e, ok := m.rows[pairKey{userID, videoID}]
	if !ok {
		return repository.ErrEntitlementNotFound
	}
	e.IsActive = false
	return nil
}

func (m *memEntitlements) ListForStats(_ context.Context, videoID *uint64) ([]model.Entitlement, error) {
	var out []model.Entitlement
	for k, e := range m.rows {
		if videoID == nil || k.video == *videoID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type sentMail struct {
	kind, to, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) record(kind, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{kind, to, body})
	return nil
}

func (f *fakeMailer) SendLoginToken(_ context.Context, to, code string) error {
	return f.record("login", to, code)
}

func (f *fakeMailer) SendWelcome(_ context.Context, to, firstName string) error {
	return f.record("welcome", to, firstName)
}

func (f *fakeMailer) byKind(kind string) []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMail
	for _, m := range f.sent {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

type published struct {
	queue   string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, q string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{q, payload})
	return f.err
}

type prefixSigner struct{}

func (prefixSigner) PlaybackURL(_ context.Context, raw string) (string, error) {
	if strings.HasPrefix(raw, "s3://") {
		return "https://signed.example/" + strings.TrimPrefix(raw, "s3://"), nil
	}
	return raw, nil
}
