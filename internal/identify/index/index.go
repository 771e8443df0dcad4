// Package index is the local acoustic fingerprint database backed by SQLite.
// The identification adapter votes query hashes against it to recognize
// previously registered tracks.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/beatforge/beatforge/internal/fingerprint"
	"github.com/beatforge/beatforge/pkg/utils"
)

var errClientNil = errors.New("index client is nil")

type Song struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Title     string `gorm:"uniqueIndex:idx_song_unique,priority:1" json:"title"`
	Artist    string `gorm:"uniqueIndex:idx_song_unique,priority:2" json:"artist"`
	CreatedAt time.Time
}

type Couple struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Hash         uint32 `gorm:"index:idx_hash" json:"hash"`
	SongID       string `gorm:"type:varchar(36);index:idx_song" json:"song_id"`
	AnchorTimeMs uint32 `json:"anchor_time_ms"`
}

// DB wraps the gorm handle for the fingerprint index.
type DB struct {
	orm *gorm.DB
	sql *sql.DB
}

func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := utils.MakeDir(dir); err != nil {
			return nil, fmt.Errorf("creating index dir: %w", err)
		}
	}

	orm, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite index: %w", err)
	}

	sqlDB, err := orm.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := orm.AutoMigrate(&Song{}, &Couple{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DB{orm: orm, sql: sqlDB}, nil
}

func (db *DB) Close() error {
	if db == nil || db.sql == nil {
		return nil
	}
	return db.sql.Close()
}

// RegisterSong inserts a song or returns the existing ID when the
// (title, artist) pair is already indexed.
func (db *DB) RegisterSong(title, artist string) (string, error) {
	if db == nil || db.orm == nil {
		return "", errClientNil
	}

	var song Song
	err := db.orm.Where("title = ? AND artist = ?", title, artist).First(&song).Error
	if err == nil {
		return song.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying existing song: %w", err)
	}

	song = Song{ID: uuid.NewString(), Title: title, Artist: artist}
	if err := db.orm.Create(&song).Error; err != nil {
		return "", fmt.Errorf("creating song: %w", err)
	}
	return song.ID, nil
}

// StoreFingerprints batch-inserts the hash couples of one song.
func (db *DB) StoreFingerprints(fps map[uint32][]fingerprint.Couple) error {
	if db == nil || db.orm == nil {
		return errClientNil
	}

	entries := make([]Couple, 0, 1024)
	for hash, couples := range fps {
		for _, c := range couples {
			entries = append(entries, Couple{
				Hash:         hash,
				SongID:       c.SongID,
				AnchorTimeMs: c.AnchorTimeMs,
			})
			if len(entries) >= 1000 {
				if err := db.orm.CreateInBatches(entries, 500).Error; err != nil {
					return fmt.Errorf("batch insert fingerprints: %w", err)
				}
				entries = entries[:0]
			}
		}
	}
	if len(entries) > 0 {
		if err := db.orm.CreateInBatches(entries, 500).Error; err != nil {
			return fmt.Errorf("batch insert last fingerprints: %w", err)
		}
	}
	return nil
}

// CouplesByHashes fetches the stored couples for a batch of query hashes.
func (db *DB) CouplesByHashes(hashes []uint32) (map[uint32][]fingerprint.Couple, error) {
	if db == nil || db.orm == nil {
		return nil, errClientNil
	}
	result := make(map[uint32][]fingerprint.Couple)
	if len(hashes) == 0 {
		return result, nil
	}

	var rows []Couple
	if err := db.orm.Where("hash IN ?", hashes).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("batch querying fingerprints: %w", err)
	}
	for _, r := range rows {
		result[r.Hash] = append(result[r.Hash], fingerprint.Couple{
			SongID:       r.SongID,
			AnchorTimeMs: r.AnchorTimeMs,
		})
	}
	return result, nil
}

// SongByID retrieves an indexed song's metadata.
func (db *DB) SongByID(songID string) (*Song, error) {
	if db == nil || db.orm == nil {
		return nil, errClientNil
	}
	var song Song
	if err := db.orm.Where("id = ?", songID).First(&song).Error; err != nil {
		return nil, fmt.Errorf("querying song %s: %w", songID, err)
	}
	return &song, nil
}

// FingerprintCount returns how many couples are stored for a song, used to
// normalize match confidence.
func (db *DB) FingerprintCount(songID string) (int, error) {
	if db == nil || db.orm == nil {
		return 0, errClientNil
	}
	var count int64
	if err := db.orm.Model(&Couple{}).Where("song_id = ?", songID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return int(count), nil
}
