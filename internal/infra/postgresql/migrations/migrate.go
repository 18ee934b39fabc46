package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/gymaccess/access-panel/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_attendance_entries",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.AttendanceModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_attendance_recorded_at ON attendance_entries (recorded_at)`,
					`CREATE INDEX IF NOT EXISTS idx_attendance_event_id ON attendance_entries (event_id)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.AttendanceModel{})
			},
		},
	})

	return m.Migrate()
}
