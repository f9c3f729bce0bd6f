package models

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"github.com/Daskott/kinfolk/server/family"
	"github.com/Daskott/kinfolk/server/logger"
	"github.com/Daskott/kinfolk/utils"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	DB_NAME           = "kinfolk.db"
	TEST_DB_PASS_KEY  = "kinfolk-test-pass"
	DB_DIRECTORY_NAME = "db"
)

var logg = logger.NewLogger()
var db *gorm.DB

// AutoMigrate opens the encrypted db under dbRootDir, migrates the schema and
// inserts seed data.
func AutoMigrate(passPhrase string, dbRootDir string) error {
	err := openDB(passPhrase, dbRootDir)
	if err != nil {
		return err
	}

	err = db.AutoMigrate(&Role{}, &User{}, &family.Person{})
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %v", err)
	}

	return populateDBWithSeedData()
}

// InitializeTestDb migrates a fresh db in a temp directory.
func InitializeTestDb() {
	dir, err := os.MkdirTemp("", "kinfolk-test")
	if err != nil {
		logg.Panic(err)
	}

	if err := AutoMigrate(TEST_DB_PASS_KEY, dir); err != nil {
		logg.Panic(err)
	}
}

// DbFilePath is where the db file of dbRootDir lives.
func DbFilePath(dbRootDir string) (string, error) {
	dbDir, err := DbDirectory(dbRootDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(dbDir, DB_NAME), nil
}

func DbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, DB_DIRECTORY_NAME)

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func openDB(passPhrase string, dbRootDir string) error {
	var err error
	var dbDSNVal string

	dbDSNVal, err = dbDSN(passPhrase, dbRootDir)
	if err != nil {
		return fmt.Errorf("failed to set sqlite DSN: %v", err)
	}

	db, err = gorm.Open(sqliteEncrypt.Open(dbDSNVal), &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %v", err)
	}

	return nil
}

func populateDBWithSeedData() error {
	if err := db.First(&Role{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'Role'")
		return db.Create(&[]Role{{Name: ADMIN_ROLE}, {Name: SUB_ADMIN_ROLE}, {Name: VIEWER_ROLE}}).Error
	}

	return nil
}

func dbDSN(passPhrase string, dbRootDir string) (string, error) {
	dbFilePath, err := DbFilePath(dbRootDir)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"file:%v?_pragma_key=%s&_pragma_cipher_page_size=4096&_journal_mode=WAL",
		dbFilePath,
		passPhrase,
	), nil
}
