// Package registry tracks trained models for discovery. Each completed
// training run appends one row; the active flag decides which version serves.
package registry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/materio/materio-go/pkg/models"
)

// ErrNotFound is returned when a registry row does not exist
var ErrNotFound = errors.New("model not registered")

// Store is the model discovery contract
type Store interface {
	Register(model *models.RegistryModel) error
	Get(id string) (*models.RegistryModel, error)
	List() ([]*models.RegistryModel, error)
	ListActive() ([]*models.RegistryModel, error)
	SetActive(id string) error
	Deactivate(id string) error
	Close() error
}

// SQLiteStore provides SQLite-based persistence for the model registry
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the registry database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	// Writes are serialized by SQLite anyway, keep the pool small
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to registry database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize registry schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ml_models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		version INTEGER NOT NULL,
		material_type TEXT NOT NULL,
		target_property TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ml_models_target ON ml_models(material_type, target_property);
	CREATE INDEX IF NOT EXISTS idx_ml_models_active ON ml_models(is_active);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Register appends one registry row for a completed training run. The row
// starts inactive; a separate SetActive flips serving to it.
func (s *SQLiteStore) Register(model *models.RegistryModel) error {
	if model.ID == "" {
		return fmt.Errorf("registry model has no id")
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}

	// Version numbers count runs per (material type, target property)
	if model.Version == 0 {
		var maxVersion sql.NullInt64
		err := s.db.QueryRow(
			`SELECT MAX(version) FROM ml_models WHERE material_type = ? AND target_property = ?`,
			model.MaterialType, model.TargetProperty,
		).Scan(&maxVersion)
		if err != nil {
			return fmt.Errorf("failed to determine model version: %w", err)
		}
		model.Version = int(maxVersion.Int64) + 1
	}

	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal registry model: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO ml_models (id, name, type, version, material_type, target_property, storage_path, is_active, created_at, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.ID, model.Name, model.Type, model.Version, model.MaterialType,
		model.TargetProperty, model.StoragePath, boolToInt(model.IsActive),
		model.CreatedAt, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to register model: %w", err)
	}
	return nil
}

// Get retrieves one registry row
func (s *SQLiteStore) Get(id string) (*models.RegistryModel, error) {
	var data string
	var isActive int
	err := s.db.QueryRow(`SELECT data, is_active FROM ml_models WHERE id = ?`, id).Scan(&data, &isActive)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return unmarshalRow(data, isActive)
}

// List returns every registered model, newest first
func (s *SQLiteStore) List() ([]*models.RegistryModel, error) {
	return s.queryModels(`SELECT data, is_active FROM ml_models ORDER BY created_at DESC`)
}

// ListActive returns the currently active models
func (s *SQLiteStore) ListActive() ([]*models.RegistryModel, error) {
	return s.queryModels(`SELECT data, is_active FROM ml_models WHERE is_active = 1 ORDER BY created_at DESC`)
}

func (s *SQLiteStore) queryModels(query string, args ...interface{}) ([]*models.RegistryModel, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var out []*models.RegistryModel
	for rows.Next() {
		var data string
		var isActive int
		if err := rows.Scan(&data, &isActive); err != nil {
			return nil, fmt.Errorf("failed to scan model row: %w", err)
		}
		model, err := unmarshalRow(data, isActive)
		if err != nil {
			return nil, err
		}
		out = append(out, model)
	}
	return out, rows.Err()
}

// SetActive marks one model active and deactivates every other version for
// the same (material type, target property) pair in a single transaction.
func (s *SQLiteStore) SetActive(id string) error {
	model, err := s.Get(id)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE ml_models SET is_active = 0 WHERE material_type = ? AND target_property = ?`,
		model.MaterialType, model.TargetProperty,
	); err != nil {
		return fmt.Errorf("failed to deactivate previous versions: %w", err)
	}
	if _, err := tx.Exec(`UPDATE ml_models SET is_active = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to activate model: %w", err)
	}
	return tx.Commit()
}

// Deactivate clears the active flag of one model
func (s *SQLiteStore) Deactivate(id string) error {
	res, err := s.db.Exec(`UPDATE ml_models SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate model: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func unmarshalRow(data string, isActive int) (*models.RegistryModel, error) {
	var model models.RegistryModel
	if err := json.Unmarshal([]byte(data), &model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry model: %w", err)
	}
	// The indexed column is authoritative: SetActive updates it without
	// rewriting the JSON document
	model.IsActive = isActive == 1
	return &model, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
