package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when an id does not match any history record.
var ErrNotFound = errors.New("history record not found")

// Record is one persisted search. RecordTime is stored as "HH:MM:SS" and
// Date as a calendar date, matching the legacy table layout.
type Record struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Location   string    `gorm:"type:varchar(100);not null" json:"location"`
	Weather    string    `gorm:"type:varchar(100)" json:"weather"`
	AirQuality string    `gorm:"column:air_quality;type:varchar(50)" json:"air_quality"`
	RecordTime string    `gorm:"column:record_time;type:time" json:"record_time"`
	Date       time.Time `gorm:"type:date" json:"date"`
}

func (Record) TableName() string { return "history" }

// Filter narrows List results. Zero-value fields are ignored.
type Filter struct {
	Location string
	From     *time.Time
	To       *time.Time
}

// Update carries a partial field set; nil pointers leave the column alone.
type Update struct {
	Location   *string
	Weather    *string
	AirQuality *string
	RecordTime *string
	Date       *time.Time
}

// Store persists search history records in MySQL. Every call is its own
// implicit transaction.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to MySQL and migrates the history table.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to history database: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating history table: %w", err)
	}

	logger.Info("History store connected")
	return &Store{db: db, logger: logger}, nil
}

// Normalize fills a record's RecordTime and Date from now when they are
// empty, and truncates Date to midnight.
func Normalize(rec *Record, now time.Time) {
	if rec.RecordTime == "" {
		rec.RecordTime = now.Format("15:04:05")
	}
	if rec.Date.IsZero() {
		rec.Date = now
	}
	rec.Date = time.Date(rec.Date.Year(), rec.Date.Month(), rec.Date.Day(), 0, 0, 0, 0, time.UTC)
}

// Add inserts a record, defaulting time and date to now.
func (s *Store) Add(ctx context.Context, rec *Record) error {
	Normalize(rec, time.Now())

	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("inserting history record: %w", err)
	}

	s.logger.Debug("History record inserted",
		zap.Uint("id", rec.ID),
		zap.String("location", rec.Location))
	return nil
}

// List returns records matching the filter, newest first (date, then
// time-of-day descending).
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	q := s.db.WithContext(ctx).Model(&Record{})

	if f.Location != "" {
		q = q.Where("location = ?", f.Location)
	}
	if f.From != nil {
		q = q.Where("date >= ?", f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", f.To)
	}

	var records []Record
	if err := q.Order("date DESC, record_time DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing history records: %w", err)
	}
	return records, nil
}

// UpdateRecord applies a partial field set to one record.
func (s *Store) UpdateRecord(ctx context.Context, id uint, u Update) error {
	fields := map[string]interface{}{}
	if u.Location != nil {
		fields["location"] = *u.Location
	}
	if u.Weather != nil {
		fields["weather"] = *u.Weather
	}
	if u.AirQuality != nil {
		fields["air_quality"] = *u.AirQuality
	}
	if u.RecordTime != nil {
		fields["record_time"] = *u.RecordTime
	}
	if u.Date != nil {
		fields["date"] = *u.Date
	}
	if len(fields) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("updating history record %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one record by id.
func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Record{}, id)
	if res.Error != nil {
		return fmt.Errorf("deleting history record %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneBefore deletes records older than cutoff and reports how many went.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("date < ?", cutoff).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning history records: %w", res.Error)
	}
	return res.RowsAffected, nil
}
