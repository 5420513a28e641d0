package database

import (
	"database/sql"
	"time"
	"codebattle/internal/common/logger"
	"codebattle/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"go.uber.org/zap"
)

var DB *sql.DB

// Connect opens the shared pool. Sizing covers API traffic plus the judge
// worker pool; each judging task holds at most one connection at a time.
func Connect() {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		logger.Fatal("failed to reach database", zap.String("host", config.AppConfig.DBHost), zap.Error(err))
	}
}

func Close() {
	if DB != nil {
		DB.Close()
	}
}
