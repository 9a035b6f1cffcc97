package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

func init() {
	godotenv.Load()
}

// DatabaseSettings is the MySQL connection and pool configuration.
type DatabaseSettings struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	SlowQuery       time.Duration
}

func DatabaseSettingsFromEnv() DatabaseSettings {
	return DatabaseSettings{
		User:            os.Getenv("DB_USER"),
		Password:        os.Getenv("DB_PASSWORD"),
		Host:            os.Getenv("DB_HOST"),
		Port:            os.Getenv("DB_PORT"),
		Name:            os.Getenv("DB_NAME"),
		MaxOpenConns:    intFromEnv("DB_MAX_OPEN_CONNS", 50),
		MaxIdleConns:    intFromEnv("DB_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		ConnMaxIdleTime: time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second,
		SlowQuery:       time.Duration(intFromEnv("DB_SLOW_QUERY_MS", 1000)) * time.Millisecond,
	}
}

// DSN builds the driver DSN. A host of /cloudsql/<CONNECTION_NAME> connects
// through the Cloud SQL unix socket. Times are read and written as UTC.
func (s DatabaseSettings) DSN() string {
	network, address := "tcp", fmt.Sprintf("%s:%s", s.Host, s.Port)
	if strings.HasPrefix(s.Host, "/cloudsql/") {
		network, address = "unix", s.Host
	}
	return fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true&loc=UTC",
		s.User, s.Password, network, address, s.Name)
}

// OpenDatabase opens a pool with the tracing and school guard plugins
// installed. The guard is required; tracing is best effort.
func OpenDatabase(s DatabaseSettings) (*gorm.DB, error) {
	conn, err := gorm.Open(mysql.Open(s.DSN()), &gorm.Config{
		Logger:         gormLogger(s.SlowQuery),
		NamingStrategy: &schema.NamingStrategy{},
	})
	if err != nil {
		return nil, err
	}
	if sqlDB, derr := conn.DB(); derr == nil && sqlDB != nil {
		if s.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(s.MaxOpenConns)
		}
		if s.MaxIdleConns >= 0 {
			sqlDB.SetMaxIdleConns(s.MaxIdleConns)
		}
		if s.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(s.ConnMaxLifetime)
		}
		if s.ConnMaxIdleTime > 0 {
			sqlDB.SetConnMaxIdleTime(s.ConnMaxIdleTime)
		}
	}
	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		logg.WithFields(logrus.Fields{"field": "database"}).Warn("otelgorm plugin not installed: " + err.Error())
	}
	if err := conn.Use(NewSchoolGuardPlugin()); err != nil {
		return nil, fmt.Errorf("school guard: %w", err)
	}
	return conn, nil
}

// ConnectDatabaseWithRetry blocks until the database is reachable and sets
// the global handle. Call it after the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	settings := DatabaseSettingsFromEnv()
	for attempt := 1; ; attempt++ {
		conn, err := OpenDatabase(settings)
		if err == nil {
			db = conn
			logg.WithFields(logrus.Fields{"field": "database", "attempt": attempt, "db": settings.Name}).Info("connected to database")
			return
		}
		sleep := retryDelay(attempt)
		logg.WithFields(logrus.Fields{"field": "database", "attempt": attempt, "retry_in": sleep.String()}).Error("failed to connect database: " + err.Error())
		time.Sleep(sleep)
	}
}

// retryDelay doubles from 2s and caps at 30s.
func retryDelay(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	return min(sleep, 30*time.Second)
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y" || v == "on"
}

func gormLogger(slow time.Duration) logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: slow,
		},
	)
}
