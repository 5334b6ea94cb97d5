package pkg

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/driveschool-hub/scheduling-service/internal/config"
	"github.com/driveschool-hub/scheduling-service/internal/models"
)

// InitDatabase opens the PostgreSQL connection and runs migrations.
func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}
	if cfg.Environment == "development" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Course{},
		&models.RideSlot{},
		&models.Ride{},
		&models.Exam{},
		&models.ExamCriterion{},
		&models.InstructorChangeRequest{},
		&models.HourPackagePurchase{},
		&models.User{},
	)
	if err != nil {
		return err
	}

	// AutoMigrate cannot express an exclusion constraint; one instructor
	// cannot publish two intersecting windows, even from concurrent inserts.
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist").Error; err != nil {
		return fmt.Errorf("failed to install btree_gist: %w", err)
	}
	err = db.Exec(`DO $$ BEGIN
		ALTER TABLE ride_slots ADD CONSTRAINT ride_slots_no_overlap
			EXCLUDE USING gist (instructor_id WITH =, tsrange(start_time, end_time) WITH &&);
	EXCEPTION WHEN duplicate_object OR duplicate_table THEN NULL;
	END $$`).Error
	if err != nil {
		return fmt.Errorf("failed to add slot overlap constraint: %w", err)
	}
	return nil
}
