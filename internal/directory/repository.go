package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides database operations for the geography tree and admins
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new directory repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- State Operations ---

// CreateState creates a new state
func (r *Repository) CreateState(ctx context.Context, state *State) error {
	query := `
		INSERT INTO org.states (id, name, code, status)
		VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, query, state.ID, state.Name, state.Code, state.Status)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("state with this name or code already exists")
		}
		return errors.Wrap(err, "failed to create state")
	}

	return nil
}

// GetState retrieves a state by ID
func (r *Repository) GetState(ctx context.Context, id types.ID) (*State, error) {
	query := `
		SELECT id, name, code, status, created_at, updated_at
		FROM org.states
		WHERE id = $1`

	state := &State{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&state.ID, &state.Name, &state.Code, &state.Status,
		&state.CreatedAt, &state.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("state", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get state")
	}

	return state, nil
}

// GetStateByCode retrieves a state by its registry code
func (r *Repository) GetStateByCode(ctx context.Context, code string) (*State, error) {
	query := `
		SELECT id, name, code, status, created_at, updated_at
		FROM org.states
		WHERE code = $1`

	state := &State{}
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&state.ID, &state.Name, &state.Code, &state.Status,
		&state.CreatedAt, &state.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("state", code)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get state by code")
	}

	return state, nil
}

// ListStates lists all states
func (r *Repository) ListStates(ctx context.Context) ([]State, error) {
	query := `
		SELECT id, name, code, status, created_at, updated_at
		FROM org.states
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list states")
	}
	defer rows.Close()

	var states []State
	for rows.Next() {
		var state State
		err := rows.Scan(
			&state.ID, &state.Name, &state.Code, &state.Status,
			&state.CreatedAt, &state.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan state")
		}
		states = append(states, state)
	}

	return states, nil
}

// --- Branch Operations ---

// CreateBranch creates a new branch
func (r *Repository) CreateBranch(ctx context.Context, branch *Branch) error {
	query := `
		INSERT INTO org.branches (id, state_id, name, code, status)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		branch.ID, branch.StateID, branch.Name, branch.Code, branch.Status,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("branch with this name or code already exists in state")
		}
		return errors.Wrap(err, "failed to create branch")
	}

	return nil
}

// GetBranch retrieves a branch by ID
func (r *Repository) GetBranch(ctx context.Context, id types.ID) (*Branch, error) {
	query := `
		SELECT id, state_id, name, code, status, created_at, updated_at
		FROM org.branches
		WHERE id = $1`

	branch := &Branch{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&branch.ID, &branch.StateID, &branch.Name, &branch.Code, &branch.Status,
		&branch.CreatedAt, &branch.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("branch", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get branch")
	}

	return branch, nil
}

// GetBranchByCode retrieves a branch by its registry code within a state
func (r *Repository) GetBranchByCode(ctx context.Context, stateID types.ID, code string) (*Branch, error) {
	query := `
		SELECT id, state_id, name, code, status, created_at, updated_at
		FROM org.branches
		WHERE state_id = $1 AND code = $2`

	branch := &Branch{}
	err := r.pool.QueryRow(ctx, query, stateID, code).Scan(
		&branch.ID, &branch.StateID, &branch.Name, &branch.Code, &branch.Status,
		&branch.CreatedAt, &branch.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("branch", code)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get branch by code")
	}

	return branch, nil
}

// ListBranches lists branches under a state
func (r *Repository) ListBranches(ctx context.Context, stateID types.ID) ([]Branch, error) {
	query := `
		SELECT id, state_id, name, code, status, created_at, updated_at
		FROM org.branches
		WHERE state_id = $1
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, stateID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list branches")
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		var branch Branch
		err := rows.Scan(
			&branch.ID, &branch.StateID, &branch.Name, &branch.Code, &branch.Status,
			&branch.CreatedAt, &branch.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan branch")
		}
		branches = append(branches, branch)
	}

	return branches, nil
}

// BranchIDsUnderState returns the IDs of all active branches of a state
func (r *Repository) BranchIDsUnderState(ctx context.Context, stateID types.ID) ([]types.ID, error) {
	query := `SELECT id FROM org.branches WHERE state_id = $1 AND status = 'active'`

	rows, err := r.pool.Query(ctx, query, stateID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list branch IDs")
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan branch ID")
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// --- Zone Operations ---

// CreateZone creates a new zone
func (r *Repository) CreateZone(ctx context.Context, zone *Zone) error {
	query := `
		INSERT INTO org.zones (id, branch_id, name, code, status)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		zone.ID, zone.BranchID, zone.Name, zone.Code, zone.Status,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("zone with this name or code already exists in branch")
		}
		return errors.Wrap(err, "failed to create zone")
	}

	return nil
}

// GetZone retrieves a zone by ID
func (r *Repository) GetZone(ctx context.Context, id types.ID) (*Zone, error) {
	query := `
		SELECT id, branch_id, name, code, status, created_at, updated_at
		FROM org.zones
		WHERE id = $1`

	zone := &Zone{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&zone.ID, &zone.BranchID, &zone.Name, &zone.Code, &zone.Status,
		&zone.CreatedAt, &zone.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("zone", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get zone")
	}

	return zone, nil
}

// GetZoneByCode retrieves a zone by its registry code within a branch
func (r *Repository) GetZoneByCode(ctx context.Context, branchID types.ID, code string) (*Zone, error) {
	query := `
		SELECT id, branch_id, name, code, status, created_at, updated_at
		FROM org.zones
		WHERE branch_id = $1 AND code = $2`

	zone := &Zone{}
	err := r.pool.QueryRow(ctx, query, branchID, code).Scan(
		&zone.ID, &zone.BranchID, &zone.Name, &zone.Code, &zone.Status,
		&zone.CreatedAt, &zone.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("zone", code)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get zone by code")
	}

	return zone, nil
}

// ListZones lists zones under a branch
func (r *Repository) ListZones(ctx context.Context, branchID types.ID) ([]Zone, error) {
	query := `
		SELECT id, branch_id, name, code, status, created_at, updated_at
		FROM org.zones
		WHERE branch_id = $1
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, branchID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list zones")
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		var zone Zone
		err := rows.Scan(
			&zone.ID, &zone.BranchID, &zone.Name, &zone.Code, &zone.Status,
			&zone.CreatedAt, &zone.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan zone")
		}
		zones = append(zones, zone)
	}

	return zones, nil
}

// ZoneIDsUnderBranch returns the IDs of all active zones of a branch
func (r *Repository) ZoneIDsUnderBranch(ctx context.Context, branchID types.ID) ([]types.ID, error) {
	query := `SELECT id FROM org.zones WHERE branch_id = $1 AND status = 'active'`

	rows, err := r.pool.Query(ctx, query, branchID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list zone IDs")
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan zone ID")
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// --- Pickup Station Operations ---

// CreateStation creates a new pickup station
func (r *Repository) CreateStation(ctx context.Context, station *PickupStation) error {
	query := `
		INSERT INTO org.pickup_stations (
			id, zone_id, name, capacity, active,
			address_street, address_city, address_postal_code, address_country,
			contact_email, contact_phone
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		station.ID, station.ZoneID, station.Name, station.Capacity, station.Active,
		station.Address.Street, station.Address.City, station.Address.PostalCode, station.Address.Country,
		station.Contact.Email, station.Contact.Phone,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("station with this name already exists in zone")
		}
		return errors.Wrap(err, "failed to create station")
	}

	return nil
}

// GetStation retrieves a pickup station by ID
func (r *Repository) GetStation(ctx context.Context, id types.ID) (*PickupStation, error) {
	query := `
		SELECT id, zone_id, name, capacity, active,
			address_street, address_city, address_postal_code, address_country,
			contact_email, contact_phone,
			created_at, updated_at
		FROM org.pickup_stations
		WHERE id = $1`

	station := &PickupStation{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&station.ID, &station.ZoneID, &station.Name, &station.Capacity, &station.Active,
		&station.Address.Street, &station.Address.City, &station.Address.PostalCode, &station.Address.Country,
		&station.Contact.Email, &station.Contact.Phone,
		&station.CreatedAt, &station.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("station", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get station")
	}

	return station, nil
}

// ListStations lists pickup stations under a zone
func (r *Repository) ListStations(ctx context.Context, zoneID types.ID) ([]PickupStation, error) {
	query := `
		SELECT id, zone_id, name, capacity, active,
			address_street, address_city, address_postal_code, address_country,
			contact_email, contact_phone,
			created_at, updated_at
		FROM org.pickup_stations
		WHERE zone_id = $1
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, zoneID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list stations")
	}
	defer rows.Close()

	var stations []PickupStation
	for rows.Next() {
		var station PickupStation
		err := rows.Scan(
			&station.ID, &station.ZoneID, &station.Name, &station.Capacity, &station.Active,
			&station.Address.Street, &station.Address.City, &station.Address.PostalCode, &station.Address.Country,
			&station.Contact.Email, &station.Contact.Phone,
			&station.CreatedAt, &station.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan station")
		}
		stations = append(stations, station)
	}

	return stations, nil
}

// GetStationsByIDs retrieves stations by a set of IDs
func (r *Repository) GetStationsByIDs(ctx context.Context, ids []types.ID) ([]PickupStation, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, zone_id, name, capacity, active,
			address_street, address_city, address_postal_code, address_country,
			contact_email, contact_phone,
			created_at, updated_at
		FROM org.pickup_stations
		WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, idStrings(ids))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stations")
	}
	defer rows.Close()

	var stations []PickupStation
	for rows.Next() {
		var station PickupStation
		err := rows.Scan(
			&station.ID, &station.ZoneID, &station.Name, &station.Capacity, &station.Active,
			&station.Address.Street, &station.Address.City, &station.Address.PostalCode, &station.Address.Country,
			&station.Contact.Email, &station.Contact.Phone,
			&station.CreatedAt, &station.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan station")
		}
		stations = append(stations, station)
	}

	return stations, nil
}

func idStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// --- Node Resolution ---

// ResolveNode resolves a geography node with its full ancestry.
// Ancestry is always derived from the parent chain, never stored.
func (r *Repository) ResolveNode(ctx context.Context, kind access.NodeKind, id types.ID) (access.Node, error) {
	switch kind {
	case access.KindState:
		var exists bool
		err := r.pool.QueryRow(ctx, `SELECT true FROM org.states WHERE id = $1`, id).Scan(&exists)
		if err == pgx.ErrNoRows {
			return access.Node{}, errors.NotFound("state", id.String())
		}
		if err != nil {
			return access.Node{}, errors.Wrap(err, "failed to resolve state")
		}
		return access.Node{Kind: access.KindState, ID: id}, nil

	case access.KindBranch:
		var stateID types.ID
		err := r.pool.QueryRow(ctx, `SELECT state_id FROM org.branches WHERE id = $1`, id).Scan(&stateID)
		if err == pgx.ErrNoRows {
			return access.Node{}, errors.NotFound("branch", id.String())
		}
		if err != nil {
			return access.Node{}, errors.Wrap(err, "failed to resolve branch")
		}
		return access.Node{Kind: access.KindBranch, ID: id, StateID: stateID}, nil

	case access.KindZone:
		var branchID, stateID types.ID
		query := `
			SELECT z.branch_id, b.state_id
			FROM org.zones z
			JOIN org.branches b ON b.id = z.branch_id
			WHERE z.id = $1`
		err := r.pool.QueryRow(ctx, query, id).Scan(&branchID, &stateID)
		if err == pgx.ErrNoRows {
			return access.Node{}, errors.NotFound("zone", id.String())
		}
		if err != nil {
			return access.Node{}, errors.Wrap(err, "failed to resolve zone")
		}
		return access.Node{Kind: access.KindZone, ID: id, BranchID: branchID, StateID: stateID}, nil
	}

	return access.Node{}, errors.BadRequest(fmt.Sprintf("unknown node kind %q", kind))
}

// UpdateNodeStatus updates the status of a geography node
func (r *Repository) UpdateNodeStatus(ctx context.Context, kind access.NodeKind, id types.ID, status NodeStatus) error {
	var table string
	switch kind {
	case access.KindState:
		table = "org.states"
	case access.KindBranch:
		table = "org.branches"
	case access.KindZone:
		table = "org.zones"
	default:
		return errors.BadRequest(fmt.Sprintf("unknown node kind %q", kind))
	}

	query := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = now() WHERE id = $1`, table)
	result, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return errors.Wrap(err, "failed to update node status")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound(string(kind), id.String())
	}

	return nil
}

// --- Admin Operations ---

const adminColumns = `
	id, name, email, role,
	jurisdiction_level, jurisdiction_node_id,
	active, status_changed_at, status_changed_by, status_reason,
	created_at, updated_at`

// CreateAdmin creates a new admin
func (r *Repository) CreateAdmin(ctx context.Context, admin *Admin) error {
	query := `
		INSERT INTO org.admins (
			id, name, email, role,
			jurisdiction_level, jurisdiction_node_id, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var level *access.Level
	var nodeID *types.ID
	if admin.Jurisdiction != nil {
		level = &admin.Jurisdiction.Level
		nodeID = &admin.Jurisdiction.NodeID
	}

	_, err := r.pool.Exec(ctx, query,
		admin.ID, admin.Name, admin.Email, admin.Role,
		level, nodeID, admin.Active,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("admin with this email already exists")
		}
		return errors.Wrap(err, "failed to create admin")
	}

	return nil
}

// GetAdmin retrieves an admin by ID
func (r *Repository) GetAdmin(ctx context.Context, id types.ID) (*Admin, error) {
	query := fmt.Sprintf(`SELECT %s FROM org.admins WHERE id = $1`, adminColumns)

	admin, err := r.scanAdmin(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("admin", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get admin")
	}

	return admin, nil
}

// GetAdminByEmail retrieves an admin by email
func (r *Repository) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	query := fmt.Sprintf(`SELECT %s FROM org.admins WHERE email = $1`, adminColumns)

	admin, err := r.scanAdmin(r.pool.QueryRow(ctx, query, email))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("admin", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get admin by email")
	}

	return admin, nil
}

func (r *Repository) scanAdmin(row pgx.Row) (*Admin, error) {
	admin := &Admin{}
	var level *access.Level
	var nodeID *types.ID

	err := row.Scan(
		&admin.ID, &admin.Name, &admin.Email, &admin.Role,
		&level, &nodeID,
		&admin.Active, &admin.StatusChangedAt, &admin.StatusChangedBy, &admin.StatusReason,
		&admin.CreatedAt, &admin.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if level != nil && nodeID != nil {
		admin.Jurisdiction = &Jurisdiction{Level: *level, NodeID: *nodeID}
	}

	return admin, nil
}

// AdminsForNodes returns the active admins holding a jurisdiction over
// any of the given nodes at the given level
func (r *Repository) AdminsForNodes(ctx context.Context, level access.Level, nodeIDs []types.ID) ([]Admin, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM org.admins
		WHERE jurisdiction_level = $1
		  AND jurisdiction_node_id = ANY($2)
		  AND active = true
		ORDER BY name`, adminColumns)

	rows, err := r.pool.Query(ctx, query, level, idStrings(nodeIDs))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list admins for nodes")
	}
	defer rows.Close()

	var admins []Admin
	for rows.Next() {
		admin, err := r.scanAdmin(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan admin")
		}
		admins = append(admins, *admin)
	}

	return admins, nil
}

// ListAdmins lists admins with optional filters
func (r *Repository) ListAdmins(ctx context.Context, filter ListAdminsFilter) ([]Admin, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argNum))
		args = append(args, *filter.Role)
		argNum++
	}

	if filter.Level != nil {
		conditions = append(conditions, fmt.Sprintf("jurisdiction_level = $%d", argNum))
		args = append(args, *filter.Level)
		argNum++
	}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argNum))
		args = append(args, *filter.Active)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM org.admins %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count admins")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM org.admins
		%s
		ORDER BY name
		LIMIT $%d OFFSET $%d`, adminColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list admins")
	}
	defer rows.Close()

	var admins []Admin
	for rows.Next() {
		admin := Admin{}
		var level *access.Level
		var nodeID *types.ID

		err := rows.Scan(
			&admin.ID, &admin.Name, &admin.Email, &admin.Role,
			&level, &nodeID,
			&admin.Active, &admin.StatusChangedAt, &admin.StatusChangedBy, &admin.StatusReason,
			&admin.CreatedAt, &admin.UpdatedAt,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan admin")
		}

		if level != nil && nodeID != nil {
			admin.Jurisdiction = &Jurisdiction{Level: *level, NodeID: *nodeID}
		}

		admins = append(admins, admin)
	}

	return admins, total, nil
}
