package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"healthnexus-portal/internal/models"
)

// Recorder persists activity and publishes it to the hub. Recording never
// fails the caller: activity is supplementary to the action that caused it.
type Recorder struct {
	db  *gorm.DB
	hub *Hub
	log *logrus.Entry
}

func NewRecorder(db *gorm.DB, hub *Hub, logger *logrus.Logger) *Recorder {
	return &Recorder{db: db, hub: hub, log: logger.WithField("component", "activity")}
}

// Record stores an event and pushes it to live subscribers.
func (r *Recorder) Record(ctx context.Context, t Type, format string, args ...interface{}) {
	r.RecordAt(ctx, t, time.Time{}, fmt.Sprintf(format, args...))
}

// RecordAt is Record for events that carry their own time, such as those
// relayed from other services. A zero ts means now.
func (r *Recorder) RecordAt(ctx context.Context, t Type, ts time.Time, message string) {
	row := models.Activity{Type: string(t), Message: message}
	row.CreatedAt = ts
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.log.WithError(err).WithField("type", t).Warn("failed to store activity")
		return
	}
	r.hub.Publish(fromModel(row))
}

// Recent returns up to limit events, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	var rows []models.Activity
	err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	events := make([]Event, len(rows))
	for i, row := range rows {
		events[i] = fromModel(row)
	}
	return events, nil
}

func (r *Recorder) Hub() *Hub { return r.hub }

func fromModel(row models.Activity) Event {
	return Event{ID: row.ID, Type: ParseType(row.Type), Message: row.Message, TS: row.CreatedAt}
}
