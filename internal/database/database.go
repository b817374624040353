package database

import (
	"strings"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"framestudio/internal/domain"
	"framestudio/internal/pkg/logger"
)

var log = logger.New("database")

func Connect(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		log.Infof("connecting to PostgreSQL")
		return gorm.Open(postgres.Open(dsn), cfg)
	}

	log.Infof("using SQLite for local development: %s", dsn)

	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		cfg,
	)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates every table the scheduling engine owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.ScheduledTask{},
		&domain.Appointment{},
		&domain.AppointmentHistory{},
		&domain.ScheduledReminder{},
		&domain.DailyWorkload{},
		&domain.CalendarDayLock{},
	); err != nil {
		return err
	}
	// One live task per order; cancelled rows may repeat. Postgres and
	// SQLite both accept partial indexes.
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_scheduled_tasks_live_order
		ON scheduled_tasks (order_id) WHERE status <> 'cancelled'`).Error
}
