// Package resources holds the helpline and shelter directory used to ground
// directive emergency replies and the UI's emergency affordance.
package resources

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Helpline is one directory entry.
type Helpline struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `json:"name"`
	Phone     string `gorm:"index" json:"phone"`
	Kind      string `gorm:"index" json:"kind"` // "hotline", "shelter", "legal", "medical"
	Region    string `json:"region"`
	Languages string `json:"languages"`
	AllHours  bool   `json:"all_hours"`
}

// Directory is the SQLite-backed helpline store.
type Directory struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the directory database and migrates the
// schema.
func Open(path string, log zerolog.Logger) (*Directory, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening directory db: %w", err)
	}
	if err := db.AutoMigrate(&Helpline{}); err != nil {
		return nil, fmt.Errorf("migrating directory schema: %w", err)
	}
	d := &Directory{db: db, logger: log.With().Str("component", "resources").Logger()}
	if err := d.seed(); err != nil {
		return nil, err
	}
	return d, nil
}

// seed inserts the baseline entries once. The national GBV helpline must
// always be present.
func (d *Directory) seed() error {
	var count int64
	if err := d.db.Model(&Helpline{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	entries := []Helpline{
		{Name: "National GBV Helpline", Phone: "1195", Kind: "hotline", Region: "Kenya", Languages: "en,sw", AllHours: true},
		{Name: "Police Emergency", Phone: "999", Kind: "hotline", Region: "Kenya", Languages: "en,sw", AllHours: true},
		{Name: "Childline Kenya", Phone: "116", Kind: "hotline", Region: "Kenya", Languages: "en,sw", AllHours: true},
		{Name: "Gender Violence Recovery Centre", Phone: "+254 709 667 000", Kind: "medical", Region: "Nairobi", Languages: "en,sw", AllHours: true},
		{Name: "FIDA Kenya Legal Aid", Phone: "+254 722 509 760", Kind: "legal", Region: "Kenya", Languages: "en,sw", AllHours: false},
	}
	if err := d.db.Create(&entries).Error; err != nil {
		return fmt.Errorf("seeding directory: %w", err)
	}
	d.logger.Info().Int("entries", len(entries)).Msg("seeded helpline directory")
	return nil
}

// All returns every entry, hotlines first.
func (d *Directory) All() ([]Helpline, error) {
	var out []Helpline
	err := d.db.Order("kind = 'hotline' DESC, name ASC").Find(&out).Error
	return out, err
}

// ByKind filters the directory.
func (d *Directory) ByKind(kind string) ([]Helpline, error) {
	var out []Helpline
	err := d.db.Where("kind = ?", kind).Order("name ASC").Find(&out).Error
	return out, err
}

// Add inserts a new entry.
func (d *Directory) Add(h *Helpline) error {
	return d.db.Create(h).Error
}
