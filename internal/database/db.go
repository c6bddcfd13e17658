package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/video-access/internal/config"
)

const tlsConfigName = "video-access"

// DSN builds the driver DSN from cfg. parseTime maps DATETIME to
// time.Time, loc=UTC keeps stored instants consistent and ClientFoundRows
// makes RowsAffected count matched rows rather than changed ones.
func DSN(cfg config.DBConfig) (string, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.ClientFoundRows = true
	mc.Timeout = cfg.ConnTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}

	if cfg.TLS {
		if err := mysql.RegisterTLSConfig(tlsConfigName, &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.TLSSkipVerify,
			MinVersion:         tls.VersionTLS12,
		}); err != nil {
			return "", fmt.Errorf("register tls config: %w", err)
		}
		mc.TLSConfig = tlsConfigName
	}
	return mc.FormatDSN(), nil
}

// Open connects to MySQL and verifies the connection.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
