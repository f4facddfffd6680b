package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// TrainingLog 训练记录
type TrainingLog struct {
	Version    string    `json:"version"`
	ModelType  string    `json:"model_type"`
	MAE        float64   `json:"mae"`
	R2         float64   `json:"r2"`
	TrainSize  int       `json:"train_size"`
	TestSize   int       `json:"test_size"`
	DataPoints int       `json:"data_points"`
	TrainedAt  time.Time `json:"trained_at"`
}

// DB 训练历史的SQLite存储
type DB struct {
	database *sql.DB
}

// InitDB 初始化数据库，不存在时自动创建
func InitDB(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        version TEXT NOT NULL,
        model_type VARCHAR(50),
        mae REAL,
        r2 REAL,
        train_size INTEGER,
        test_size INTEGER,
        data_points INTEGER,
        trained_at DATETIME NOT NULL,
        UNIQUE(version)
    );
    CREATE INDEX IF NOT EXISTS idx_training_log_trained_at ON training_log(trained_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &DB{database: database}, nil
}

func (d *DB) Close() error {
	if d == nil || d.database == nil {
		return nil
	}
	return d.database.Close()
}

// SaveTrainingLog 保存训练记录
func (d *DB) SaveTrainingLog(ctx context.Context, entry TrainingLog) error {
	if d == nil || d.database == nil {
		return errors.New("database not initialized")
	}
	if entry.Version == "" {
		return errors.New("version required")
	}
	_, err := d.database.ExecContext(ctx, `
        INSERT OR REPLACE INTO training_log (
            version, model_type, mae, r2, train_size, test_size, data_points, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `,
		entry.Version,
		entry.ModelType,
		entry.MAE,
		entry.R2,
		entry.TrainSize,
		entry.TestSize,
		entry.DataPoints,
		entry.TrainedAt.UTC(),
	)
	return err
}

// LoadTrainingLog 按时间倒序加载训练记录，limit <= 0时返回全部
func (d *DB) LoadTrainingLog(ctx context.Context, limit int) ([]TrainingLog, error) {
	if d == nil || d.database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.database.QueryContext(ctx, `
        SELECT version, model_type, mae, r2, train_size, test_size, data_points, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.Version, &log.ModelType, &log.MAE, &log.R2, &log.TrainSize, &log.TestSize, &log.DataPoints, &log.TrainedAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
