package registry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/shared/config"
)

// Adapter imports the national geography registry from a legacy SQL
// Server instance into the directory tree. The registry is the source
// of truth for state, branch and zone codes; the import is additive
// and idempotent.
type Adapter struct {
	db     *sql.DB
	config Config
	dir    *directory.Repository

	running  bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	lastSync time.Time
	wg       sync.WaitGroup
}

// Config holds registry adapter configuration
type Config struct {
	config.RegistryConfig

	RegionTable       string `json:"region_table"`
	DistrictTable     string `json:"district_table"`
	MunicipalityTable string `json:"municipality_table"`
}

// DefaultConfig returns default registry configuration
func DefaultConfig(cfg config.RegistryConfig) Config {
	return Config{
		RegistryConfig:    cfg,
		RegionTable:       "dbo.Regions",
		DistrictTable:     "dbo.Districts",
		MunicipalityTable: "dbo.Municipalities",
	}
}

// RegionRecord is one top-level registry row
type RegionRecord struct {
	Code         string
	Name         string
	Active       bool
	LastModified time.Time
}

// DistrictRecord is one mid-level registry row
type DistrictRecord struct {
	Code         string
	Name         string
	RegionCode   string
	Active       bool
	LastModified time.Time
}

// MunicipalityRecord is one leaf registry row
type MunicipalityRecord struct {
	Code         string
	Name         string
	DistrictCode string
	Active       bool
	LastModified time.Time
}

// New creates a new registry adapter
func New(cfg Config, dir *directory.Repository) *Adapter {
	return &Adapter{config: cfg, dir: dir}
}

// Start connects to the legacy registry and begins periodic imports
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("registry adapter already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.config.Host,
		a.config.Port,
		a.config.Database,
		a.config.User,
		a.config.Password,
	)

	if a.config.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open registry database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping registry database: %w", err)
	}

	a.db = db
	a.running = true

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.syncLoop(pollCtx)

	return nil
}

// Stop stops the adapter and closes the connection
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if a.db != nil {
		a.db.Close()
	}

	a.running = false
	return nil
}

// Health checks registry connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("registry adapter not running")
	}

	return a.db.PingContext(ctx)
}

// IsConnected returns connection status
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running && a.db != nil
}

// SourceSystem returns the source system name
func (a *Adapter) SourceSystem() string {
	return "national_registry"
}

// LastSync returns the time of the last completed import
func (a *Adapter) LastSync() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastSync
}

func (a *Adapter) syncLoop(ctx context.Context) {
	defer a.wg.Done()

	// First import right away, then on the poll interval
	if _, err := a.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		fmt.Printf("registry sync failed: %v\n", err)
	}

	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.SyncOnce(ctx); err != nil && ctx.Err() == nil {
				fmt.Printf("registry sync failed: %v\n", err)
			}
		}
	}
}

// --- Legacy fetches ---

func (a *Adapter) fetchRegions(ctx context.Context) ([]RegionRecord, error) {
	query := fmt.Sprintf(`
		SELECT Code, Name, Active, LastModified
		FROM %s
		ORDER BY Code`, a.config.RegionTable)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch regions: %w", err)
	}
	defer rows.Close()

	var records []RegionRecord
	for rows.Next() {
		var rec RegionRecord
		var active sql.NullBool

		if err := rows.Scan(&rec.Code, &rec.Name, &active, &rec.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}

		rec.Active = active.Valid && active.Bool
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (a *Adapter) fetchDistricts(ctx context.Context) ([]DistrictRecord, error) {
	query := fmt.Sprintf(`
		SELECT d.Code, d.Name, r.Code, d.Active, d.LastModified
		FROM %s d
		INNER JOIN %s r ON d.RegionID = r.RegionID
		ORDER BY d.Code`, a.config.DistrictTable, a.config.RegionTable)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch districts: %w", err)
	}
	defer rows.Close()

	var records []DistrictRecord
	for rows.Next() {
		var rec DistrictRecord
		var active sql.NullBool

		if err := rows.Scan(&rec.Code, &rec.Name, &rec.RegionCode, &active, &rec.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan district: %w", err)
		}

		rec.Active = active.Valid && active.Bool
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (a *Adapter) fetchMunicipalities(ctx context.Context) ([]MunicipalityRecord, error) {
	query := fmt.Sprintf(`
		SELECT m.Code, m.Name, d.Code, m.Active, m.LastModified
		FROM %s m
		INNER JOIN %s d ON m.DistrictID = d.DistrictID
		ORDER BY m.Code`, a.config.MunicipalityTable, a.config.DistrictTable)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch municipalities: %w", err)
	}
	defer rows.Close()

	var records []MunicipalityRecord
	for rows.Next() {
		var rec MunicipalityRecord
		var active sql.NullBool

		if err := rows.Scan(&rec.Code, &rec.Name, &rec.DistrictCode, &active, &rec.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan municipality: %w", err)
		}

		rec.Active = active.Valid && active.Bool
		records = append(records, rec)
	}

	return records, rows.Err()
}
