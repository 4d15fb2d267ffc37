package registry

import (
	"context"
	"testing"
	"time"

	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/shared/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(config.RegistryConfig{
		Host:         "registry.local",
		Port:         1433,
		Database:     "national_registry",
		PollInterval: 6 * time.Hour,
	})

	if cfg.RegionTable != "dbo.Regions" {
		t.Errorf("Expected 'dbo.Regions', got '%s'", cfg.RegionTable)
	}
	if cfg.DistrictTable != "dbo.Districts" {
		t.Errorf("Expected 'dbo.Districts', got '%s'", cfg.DistrictTable)
	}
	if cfg.MunicipalityTable != "dbo.Municipalities" {
		t.Errorf("Expected 'dbo.Municipalities', got '%s'", cfg.MunicipalityTable)
	}
	if cfg.Host != "registry.local" {
		t.Errorf("Expected 'registry.local', got '%s'", cfg.Host)
	}
}

func TestNodeStatusMapping(t *testing.T) {
	if nodeStatus(true) != directory.NodeStatusActive {
		t.Error("Active registry rows should map to active nodes")
	}
	if nodeStatus(false) != directory.NodeStatusInactive {
		t.Error("Inactive registry rows should map to inactive nodes")
	}
}

func TestSyncReportCounts(t *testing.T) {
	report := &SyncReport{}

	report.count(true)
	report.count(true)
	report.count(false)

	if report.Created != 2 {
		t.Errorf("Expected 2 created, got %d", report.Created)
	}
	if report.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", report.Skipped)
	}
}

func TestAdapterNotConnected(t *testing.T) {
	a := New(DefaultConfig(config.RegistryConfig{}), nil)

	if a.IsConnected() {
		t.Error("New adapter should not report connected")
	}

	if _, err := a.SyncOnce(context.Background()); err == nil {
		t.Error("Expected error when syncing while disconnected")
	}

	if err := a.Health(context.Background()); err == nil {
		t.Error("Expected health check to fail while stopped")
	}
}
