package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/types"
)

// SyncReport summarizes one registry import
type SyncReport struct {
	Regions        int           `json:"regions"`
	Districts      int           `json:"districts"`
	Municipalities int           `json:"municipalities"`
	Created        int           `json:"created"`
	Skipped        int           `json:"skipped"`
	Duration       time.Duration `json:"duration"`
}

// SyncOnce runs a single import pass. Rows already present in the
// directory are matched by registry code and left untouched, so the
// pass can run repeatedly against the same registry snapshot.
func (a *Adapter) SyncOnce(ctx context.Context) (*SyncReport, error) {
	if !a.IsConnected() {
		return nil, fmt.Errorf("registry adapter not connected")
	}

	start := time.Now()
	report := &SyncReport{}

	regions, err := a.fetchRegions(ctx)
	if err != nil {
		return nil, err
	}
	report.Regions = len(regions)

	districts, err := a.fetchDistricts(ctx)
	if err != nil {
		return nil, err
	}
	report.Districts = len(districts)

	municipalities, err := a.fetchMunicipalities(ctx)
	if err != nil {
		return nil, err
	}
	report.Municipalities = len(municipalities)

	stateIDs := make(map[string]types.ID, len(regions))
	for _, rec := range regions {
		id, created, err := a.seedState(ctx, rec)
		if err != nil {
			return nil, err
		}
		stateIDs[rec.Code] = id
		report.count(created)
	}

	branchIDs := make(map[string]types.ID, len(districts))
	for _, rec := range districts {
		stateID, ok := stateIDs[rec.RegionCode]
		if !ok {
			return nil, fmt.Errorf("district %s references unknown region %s", rec.Code, rec.RegionCode)
		}

		id, created, err := a.seedBranch(ctx, stateID, rec)
		if err != nil {
			return nil, err
		}
		branchIDs[rec.Code] = id
		report.count(created)
	}

	for _, rec := range municipalities {
		branchID, ok := branchIDs[rec.DistrictCode]
		if !ok {
			return nil, fmt.Errorf("municipality %s references unknown district %s", rec.Code, rec.DistrictCode)
		}

		_, created, err := a.seedZone(ctx, branchID, rec)
		if err != nil {
			return nil, err
		}
		report.count(created)
	}

	report.Duration = time.Since(start)

	a.mu.Lock()
	a.lastSync = time.Now()
	a.mu.Unlock()

	return report, nil
}

func (r *SyncReport) count(created bool) {
	if created {
		r.Created++
	} else {
		r.Skipped++
	}
}

func (a *Adapter) seedState(ctx context.Context, rec RegionRecord) (types.ID, bool, error) {
	existing, err := a.dir.GetStateByCode(ctx, rec.Code)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return "", false, err
	}

	state := &directory.State{
		ID:     types.NewID(),
		Name:   rec.Name,
		Code:   rec.Code,
		Status: nodeStatus(rec.Active),
	}

	if err := a.dir.CreateState(ctx, state); err != nil {
		return "", false, err
	}

	return state.ID, true, nil
}

func (a *Adapter) seedBranch(ctx context.Context, stateID types.ID, rec DistrictRecord) (types.ID, bool, error) {
	existing, err := a.dir.GetBranchByCode(ctx, stateID, rec.Code)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return "", false, err
	}

	branch := &directory.Branch{
		ID:      types.NewID(),
		StateID: stateID,
		Name:    rec.Name,
		Code:    rec.Code,
		Status:  nodeStatus(rec.Active),
	}

	if err := a.dir.CreateBranch(ctx, branch); err != nil {
		return "", false, err
	}

	return branch.ID, true, nil
}

func (a *Adapter) seedZone(ctx context.Context, branchID types.ID, rec MunicipalityRecord) (types.ID, bool, error) {
	existing, err := a.dir.GetZoneByCode(ctx, branchID, rec.Code)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return "", false, err
	}

	zone := &directory.Zone{
		ID:       types.NewID(),
		BranchID: branchID,
		Name:     rec.Name,
		Code:     rec.Code,
		Status:   nodeStatus(rec.Active),
	}

	if err := a.dir.CreateZone(ctx, zone); err != nil {
		return "", false, err
	}

	return zone.ID, true, nil
}

// nodeStatus maps the registry's active flag onto a directory status.
// Inactive registry rows are still imported so historical references
// resolve, they just cannot host new activity.
func nodeStatus(active bool) directory.NodeStatus {
	if active {
		return directory.NodeStatusActive
	}
	return directory.NodeStatusInactive
}
