// Package usagesink persists corecfg.MachineUsage records emitted by
// pkg/session's FSM on every completed session. It is a reference
// implementation of the "thin request handlers that upload usage logs"
// consumer spec.md section 1 places outside the core's scope, included
// here to give gorm.io/gorm and gorm.io/driver/sqlite a concrete home,
// grounded on kgiusti-go-fdo-server's gorm+sqlite voucher store wiring
// in cmd/config.go.
package usagesink

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
	"github.com/werkstattwaedi/accesscore/pkg/session"
)

// UsageRecord is the persisted row shape for a single closed session.
type UsageRecord struct {
	ID        uint `gorm:"primaryKey"`
	TagUid    string
	UserID    string
	AuthID    string
	CheckIn   time.Time
	CheckOut  time.Time
	Reason    string
	CreatedAt time.Time
}

func (UsageRecord) TableName() string { return "machine_usage" }

// Sink implements session.Observer, writing every closed session to a
// sqlite-backed gorm.DB. OnSessionStarted is a no-op: only completed
// sessions are durable records here.
type Sink struct {
	db *gorm.DB
}

// Open migrates the schema (if needed) and returns a ready Sink backed by
// the sqlite database file at path.
func Open(path string) (*Sink, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("usagesink: opening %s: %w", path, err)
	}
	if err := db.AutoMigrate(&UsageRecord{}); err != nil {
		return nil, fmt.Errorf("usagesink: migrating schema: %w", err)
	}
	return &Sink{db: db}, nil
}

// OnSessionStarted satisfies session.Observer; usagesink only records
// completed sessions.
func (s *Sink) OnSessionStarted(corecfg.SessionInfo) {}

// OnSessionEnded persists the closed session's usage record. Errors are
// swallowed into the observer callback's void return per session.Observer's
// contract (best-effort telemetry, never blocks or fails the FSM transition
// that produced it); callers needing delivery guarantees should wrap Sink
// with their own retry/outbox layer.
func (s *Sink) OnSessionEnded(info corecfg.SessionInfo, usage corecfg.MachineUsage) {
	_ = s.db.Create(&UsageRecord{
		TagUid:    info.TagUid.Hex(),
		UserID:    string(usage.UserID),
		AuthID:    string(usage.AuthID),
		CheckIn:   usage.CheckIn,
		CheckOut:  usage.CheckOut,
		Reason:    usage.Reason.String(),
		CreatedAt: time.Now(),
	}).Error
}

// Recent returns up to limit most recent usage records, newest first. It
// exists mainly to give integration tests and operational tooling a way to
// verify what Sink wrote.
func (s *Sink) Recent(limit int) ([]UsageRecord, error) {
	var out []UsageRecord
	if err := s.db.Order("id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("usagesink: querying recent: %w", err)
	}
	return out, nil
}

// Close releases the underlying sqlite connection.
func (s *Sink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ session.Observer = (*Sink)(nil)
