package config

import (
	"database/sql"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

// ErrAOINotFound is returned when a named AOI is not in the database.
var ErrAOINotFound = errors.New("config: AOI not found")

const defaultConfigName = "default"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS configs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS sections (
	config_id INTEGER NOT NULL REFERENCES configs(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (config_id, name)
);
CREATE TABLE IF NOT EXISTS aois (
	config_id INTEGER NOT NULL REFERENCES configs(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	min_x REAL, min_y REAL, max_x REAL, max_y REAL,
	rings TEXT,
	PRIMARY KEY (config_id, name)
);`

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Each top-level section except the AOIs is stored as a YAML document; AOIs
// get their own table so they can be managed one at a time.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create config schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// section names the YAML-encoded parts of ConfigData.
func sections(c *ConfigData) map[string]any {
	return map[string]any{
		"analysis":   &c.Analysis,
		"sources":    &c.Sources,
		"glaciers":   &c.Glaciers,
		"pipeline":   &c.Pipeline,
		"storage":    &c.Storage,
		"server":     &c.Server,
		"management": &c.Management,
	}
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	rows, err := s.db.Query(`
		SELECT s.name, s.body FROM sections s
		JOIN configs c ON c.id = s.config_id
		WHERE c.name = ?`, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query config sections: %w", err)
	}
	defer rows.Close()

	targets := sections(config)
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("failed to scan section row: %w", err)
		}
		target, ok := targets[name]
		if !ok {
			return nil, fmt.Errorf("unknown config section %q", name)
		}
		if err := yaml.Unmarshal([]byte(body), target); err != nil {
			return nil, fmt.Errorf("failed to decode section %s: %w", name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aois, err := s.GetAOIs()
	if err != nil {
		return nil, fmt.Errorf("failed to load AOIs: %w", err)
	}
	config.AOIs = aois
	config.ApplyDefaults()
	return config, nil
}

// GetAOIs returns AOI configurations from the database
func (s *SQLiteProvider) GetAOIs() ([]AOIData, error) {
	rows, err := s.db.Query(`
		SELECT a.name, a.min_x, a.min_y, a.max_x, a.max_y, a.rings
		FROM aois a JOIN configs c ON c.id = a.config_id
		WHERE c.name = ?
		ORDER BY a.name`, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query AOIs: %w", err)
	}
	defer rows.Close()

	var aois []AOIData
	for rows.Next() {
		aoi, err := scanAOI(rows)
		if err != nil {
			return nil, err
		}
		aois = append(aois, *aoi)
	}
	return aois, rows.Err()
}

// GetAOI returns one AOI by name.
func (s *SQLiteProvider) GetAOI(name string) (*AOIData, error) {
	row := s.db.QueryRow(`
		SELECT a.name, a.min_x, a.min_y, a.max_x, a.max_y, a.rings
		FROM aois a JOIN configs c ON c.id = a.config_id
		WHERE c.name = ? AND a.name = ?`, defaultConfigName, name)
	aoi, err := scanAOI(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAOINotFound, name)
	}
	return aoi, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAOI(r scanner) (*AOIData, error) {
	var aoi AOIData
	var minX, minY, maxX, maxY sql.NullFloat64
	var rings sql.NullString
	if err := r.Scan(&aoi.Name, &minX, &minY, &maxX, &maxY, &rings); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan AOI row: %w", err)
	}
	if minX.Valid && minY.Valid && maxX.Valid && maxY.Valid {
		aoi.BBox = []float64{minX.Float64, minY.Float64, maxX.Float64, maxY.Float64}
	}
	if rings.Valid && rings.String != "" {
		if err := yaml.Unmarshal([]byte(rings.String), &aoi.Rings); err != nil {
			return nil, fmt.Errorf("failed to decode rings of AOI %s: %w", aoi.Name, err)
		}
	}
	return &aoi, nil
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	config, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Storage, nil
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData.
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}
	if err := s.clearExistingConfig(tx, configID); err != nil {
		return err
	}

	for name, section := range sections(configData) {
		body, err := yaml.Marshal(section)
		if err != nil {
			return fmt.Errorf("failed to encode section %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO sections (config_id, name, body) VALUES (?, ?, ?)`,
			configID, name, string(body)); err != nil {
			return fmt.Errorf("failed to insert section %s: %w", name, err)
		}
	}
	for i := range configData.AOIs {
		if err := insertAOI(tx, configID, &configData.AOIs[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AddAOI adds or replaces one AOI.
func (s *SQLiteProvider) AddAOI(aoi *AOIData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}
	if err := insertAOI(tx, configID, aoi); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteAOI removes one AOI.
func (s *SQLiteProvider) DeleteAOI(name string) error {
	res, err := s.db.Exec(`
		DELETE FROM aois WHERE name = ?
		AND config_id = (SELECT id FROM configs WHERE name = ?)`, name, defaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to delete AOI %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrAOINotFound, name)
	}
	return nil
}

func insertAOI(tx *sql.Tx, configID int64, aoi *AOIData) error {
	var minX, minY, maxX, maxY sql.NullFloat64
	if len(aoi.BBox) == 4 {
		minX = sql.NullFloat64{Float64: aoi.BBox[0], Valid: true}
		minY = sql.NullFloat64{Float64: aoi.BBox[1], Valid: true}
		maxX = sql.NullFloat64{Float64: aoi.BBox[2], Valid: true}
		maxY = sql.NullFloat64{Float64: aoi.BBox[3], Valid: true}
	}
	var rings sql.NullString
	if len(aoi.Rings) > 0 {
		b, err := yaml.Marshal(aoi.Rings)
		if err != nil {
			return fmt.Errorf("failed to encode rings of AOI %s: %w", aoi.Name, err)
		}
		rings = sql.NullString{String: string(b), Valid: true}
	}
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO aois (config_id, name, min_x, min_y, max_x, max_y, rings)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		configID, aoi.Name, minX, minY, maxX, maxY, rings)
	if err != nil {
		return fmt.Errorf("failed to insert AOI %s: %w", aoi.Name, err)
	}
	return nil
}

func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	if _, err := tx.Exec(`INSERT OR IGNORE INTO configs (name) VALUES (?)`, defaultConfigName); err != nil {
		return 0, fmt.Errorf("failed to create config: %w", err)
	}
	var id int64
	if err := tx.QueryRow(`SELECT id FROM configs WHERE name = ?`, defaultConfigName).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to get config ID: %w", err)
	}
	return id, nil
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	for _, table := range []string{"sections", "aois"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE config_id = ?", configID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// UpdateManagement stores the management API settings, keeping every other
// section.
func (s *SQLiteProvider) UpdateManagement(m *ManagementData) error {
	body, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode management section: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO sections (config_id, name, body) VALUES (?, 'management', ?)`,
		configID, string(body)); err != nil {
		return fmt.Errorf("failed to store management section: %w", err)
	}
	return tx.Commit()
}
