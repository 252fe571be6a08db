package storage

import (
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database interface {
	Open() error
	Close()
	Profiles
	Notices
	Subscriptions
	Memberships
	Attachments
}

// sqliteDatabase stores one user's federated social graph and notices
// in a sqlite database
type sqliteDatabase struct {
	Profiles
	Notices
	Subscriptions
	Memberships
	Attachments
	connection string
	db         *gorm.DB
	sqldb      *sql.DB
}

func (s *sqliteDatabase) Open() error {
	if s.db != nil {
		s.Close()
	}
	newLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(sqlite.Open(s.connection), &gorm.Config{
		Logger: newLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return err
	}
	s.sqldb, err = db.DB()
	if err != nil {
		return err
	}
	s.db = db
	// create tables
	s.db.Migrator().AutoMigrate(&Profile{})
	s.db.Migrator().AutoMigrate(&Notice{})
	s.db.Migrator().AutoMigrate(&Subscription{})
	s.db.Migrator().AutoMigrate(&GroupMembership{})
	s.db.Migrator().AutoMigrate(&Attachment{})
	return nil
}

func (s *sqliteDatabase) Close() {
	if s.db != nil {
		s.sqldb.Close()
		s.sqldb = nil
		s.db = nil
	}
}

func NewDatabase(connection string) Database {
	return &sqliteDatabase{
		connection: connection,
	}
}
