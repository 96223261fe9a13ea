package store

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
	_ "modernc.org/sqlite"

	pulses "github.com/hvlab/pulse_go/pkg"
)

// Database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// ConnectToDatabase opens the shared MySQL server of the lab.
func ConnectToDatabase(user, password, host, database string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, password, host, port, database)
	db, err := sqlx.Connect(DriverMySQL, dbURI)
	return db, err
}

// Open connects with an explicit driver and data source name.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}
	return &Store{DB: db, Driver: driver}, nil
}

// OpenConfigured connects the way the configuration asks: the MySQL server
// given by host, user and dbname, or the SQLite file in db_dsn.
func OpenConfigured(config pulses.Configuration) (*Store, error) {
	if config.DBDriver != DriverMySQL {
		return Open(DriverSQLite, config.DBDSN)
	}
	if config.DBDSN != "" && config.Host == "" {
		return Open(DriverMySQL, config.DBDSN)
	}
	db, err := ConnectToDatabase(config.User, config.Passwd, config.Host, config.DBName)
	if err != nil {
		return nil, fmt.Errorf("connecting to mysql database: %w", err)
	}
	return &Store{DB: db, Driver: DriverMySQL}, nil
}
