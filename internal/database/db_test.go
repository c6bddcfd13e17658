package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/video-access/internal/config"
)

func TestDSN(t *testing.T) {
	dsn, err := DSN(config.DBConfig{
		Host: "db.internal", Port: "3306", User: "app", Pass: "s3cret", Name: "videos",
		ConnTimeout: 30 * time.Second,
	})
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:3306", parsed.Addr)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "s3cret", parsed.Passwd)
	assert.Equal(t, "videos", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.ClientFoundRows)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.Empty(t, parsed.TLSConfig)
}

func TestDSN_TLS(t *testing.T) {
	dsn, err := DSN(config.DBConfig{Host: "db", Port: "3306", User: "app", Name: "videos", TLS: true, TLSSkipVerify: true})
	require.NoError(t, err)
	assert.Contains(t, dsn, "tls="+tlsConfigName)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	body, err := migrationsFS.ReadFile(migrationsDir + "/" + entries[0].Name())
	require.NoError(t, err)
	sql := string(body)
	assert.Contains(t, sql, "-- +goose Up")
	assert.Contains(t, sql, "UNIQUE KEY uq_user_videos_user_video (user_id, video_id)")
	assert.Contains(t, sql, "UNIQUE KEY uq_users_email (email)")
}
