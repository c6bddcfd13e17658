package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/repository"
)

type seedUser struct{ email, first, last string }

type seedVideo struct {
	title, description, url, duration, category, tags, resolution string
	seconds                                                      int
}

var seedUsers = []seedUser{
	{"admin@example.com", "Admin", "Console"},
	{"maria.silva@example.com", "Maria", "Silva"},
	{"joao.santos@example.com", "João", "Santos"},
	{"ana.costa@example.com", "Ana", "Costa"},
}

var seedVideos = []seedVideo{
	{"Platform Introduction", "The basics of the platform and how to find your way around it.", "https://sample-videos.com/zip/10/mp4/SampleVideo_1280x720_1mb.mp4", "05:30", "Training", "intro,basics,tutorial", "720p", 330},
	{"Running Effective Meetings", "Facilitation and time management techniques for productive meetings.", "https://sample-videos.com/zip/10/mp4/SampleVideo_1280x720_2mb.mp4", "08:45", "Management", "meetings,productivity,communication", "720p", 525},
	{"Agile Project Management", "Scrum, Kanban and other agile frameworks applied to projects.", "https://sample-videos.com/zip/10/mp4/SampleVideo_1280x720_5mb.mp4", "12:20", "Methodology", "agile,scrum,kanban", "720p", 740},
	{"Information Security", "Core principles for protecting corporate data.", "https://sample-videos.com/zip/10/mp4/SampleVideo_1280x720_1mb.mp4", "15:10", "Security", "security,data,cyber", "1080p", 910},
	{"Advanced Spreadsheets", "Analysis techniques and dynamic reports.", "https://sample-videos.com/zip/10/mp4/SampleVideo_1280x720_5mb.mp4", "18:25", "Tools", "spreadsheets,analysis,reports", "1080p", 1105},
}

// Seed inserts sample users, videos and entitlements. It does nothing when
// the users table already has rows.
func Seed(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		log.Info("seed skipped, users already present", "users", n)
		return nil
	}

	users := repository.NewUserRepo(db)
	videos := repository.NewVideoRepo(db)
	grants := repository.NewEntitlementRepo(db)

	var userIDs []string
	for _, su := range seedUsers {
		first, last := su.first, su.last
		u := model.User{Email: su.email, FirstName: &first, LastName: &last, IsActive: true}
		if err := users.Create(ctx, &u); err != nil {
			return fmt.Errorf("seed user %s: %w", su.email, err)
		}
		userIDs = append(userIDs, u.ID)
	}

	var videoIDs []uint64
	for _, sv := range seedVideos {
		v := model.Video{
			Title:           sv.title,
			Description:     &sv.description,
			URL:             sv.url,
			Duration:        &sv.duration,
			DurationSeconds: &sv.seconds,
			Status:          model.StatusPublished,
			IsActive:        true,
			Category:        &sv.category,
			Tags:            &sv.tags,
			Resolution:      &sv.resolution,
		}
		if err := videos.Create(ctx, &v); err != nil {
			return fmt.Errorf("seed video %q: %w", sv.title, err)
		}
		videoIDs = append(videoIDs, v.ID)
	}

	// the admin gets every video, everyone else the first three
	grantor := "seed"
	count := 0
	for i, uid := range userIDs {
		for j, vid := range videoIDs {
			if i > 0 && j >= 3 {
				break
			}
			access := model.AccessAssigned
			if i == 0 {
				access = model.AccessAdmin
			}
			e := model.Entitlement{UserID: uid, VideoID: vid, AccessType: access, GrantedBy: &grantor}
			if err := grants.Upsert(ctx, &e); err != nil {
				return fmt.Errorf("seed entitlement: %w", err)
			}
			count++
		}
	}

	log.Info("seed completed", "users", len(userIDs), "videos", len(videoIDs), "entitlements", count)
	return nil
}
