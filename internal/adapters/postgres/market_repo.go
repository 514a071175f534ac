package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/pkg/geospatial"
)

// MarketRepo implements ports.MarketRepository with pgx and PostGIS.
type MarketRepo struct {
	db *DB
}

// NewMarketRepo creates a new MarketRepo.
func NewMarketRepo(db *DB) *MarketRepo {
	return &MarketRepo{db: db}
}

const marketColumns = `
	id, name,
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	COALESCE(address, ''), COALESCE(city, ''), COALESCE(state, ''), COALESCE(zip_code, ''),
	COALESCE(hours, ''), is_open, organic_only, accepts_snap, accepts_wic, pet_friendly,
	COALESCE(phone, ''), COALESCE(website, ''), updated_at`

func scanMarket(row pgx.Row, extra ...any) (domain.Market, error) {
	var m domain.Market
	dest := []any{
		&m.ID, &m.Name, &m.Latitude, &m.Longitude,
		&m.Address, &m.City, &m.State, &m.ZipCode,
		&m.Hours, &m.IsOpen, &m.OrganicOnly, &m.AcceptsSNAP, &m.AcceptsWIC, &m.PetFriendly,
		&m.Phone, &m.Website, &m.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return m, err
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	defer rows.Close()
	markets := []domain.Market{}
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

const upsertMarketSQL = `
	INSERT INTO markets (id, name, location, address, city, state, zip_code, hours, is_open,
	                     organic_only, accepts_snap, accepts_wic, pet_friendly, phone, website, updated_at)
	VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7, $8, $9, $10,
	        $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, location = EXCLUDED.location, address = EXCLUDED.address,
	    city = EXCLUDED.city, state = EXCLUDED.state, zip_code = EXCLUDED.zip_code,
	    hours = EXCLUDED.hours, is_open = EXCLUDED.is_open, phone = EXCLUDED.phone,
	    website = EXCLUDED.website, updated_at = EXCLUDED.updated_at`

// UpsertBatch inserts many markets using pgx.Batch.
func (r *MarketRepo) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarketSQL,
			m.ID, m.Name, m.Longitude, m.Latitude, m.Address, m.City, m.State, m.ZipCode,
			m.Hours, m.IsOpen, m.OrganicOnly, m.AcceptsSNAP, m.AcceptsWIC, m.PetFriendly,
			m.Phone, m.Website, m.UpdatedAt,
		)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a market by ID.
func (r *MarketRepo) GetByID(ctx context.Context, id string) (*domain.Market, error) {
	m, err := scanMarket(r.db.Pool.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns a page of markets ordered by name, optionally for one state.
func (r *MarketRepo) List(ctx context.Context, state string, offset, limit int) ([]domain.Market, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM markets WHERE $1 = '' OR state = $1`, state,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+marketColumns+`
		FROM markets
		WHERE $1 = '' OR state = $1
		ORDER BY name, id
		OFFSET $2 LIMIT $3
	`, state, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	markets, err := collectMarkets(rows)
	return markets, total, err
}

// ListByStates returns all markets of the given states.
func (r *MarketRepo) ListByStates(ctx context.Context, states []string) ([]domain.Market, error) {
	if len(states) == 0 {
		return []domain.Market{}, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+marketColumns+`
		FROM markets
		WHERE state = ANY($1)
		ORDER BY state, id
	`, states)
	if err != nil {
		return nil, err
	}
	return collectMarkets(rows)
}

// FindNearby returns markets within radiusMiles using PostGIS ST_DWithin.
func (r *MarketRepo) FindNearby(ctx context.Context, lat, lon, radiusMiles float64, limit int) ([]domain.Market, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+marketColumns+`,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM markets
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lon, lat, geospatial.MilesToMeters(radiusMiles), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	markets := []domain.Market{}
	for rows.Next() {
		var meters float64
		m, err := scanMarket(rows, &meters)
		if err != nil {
			return nil, err
		}
		miles := geospatial.MetersToMiles(meters)
		m.Distance = &miles
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// InBounds returns markets inside a viewport box.
func (r *MarketRepo) InBounds(ctx context.Context, bounds domain.ViewportBounds, limit int) ([]domain.Market, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+marketColumns+`
		FROM markets
		WHERE location::geometry && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY id
		LIMIT $5
	`, bounds.Southwest.Lon(), bounds.Southwest.Lat(), bounds.Northeast.Lon(), bounds.Northeast.Lat(), limit)
	if err != nil {
		return nil, err
	}
	return collectMarkets(rows)
}
