package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/strollr-labs/strollr/internal/domain"
)

// ─── Discovery Store ────────────────────────────────────────────────────────

// PutDiscoveries upserts one row per consolidated discovery. Save/dismiss
// flags on an existing row survive the upsert: consolidation never undoes a
// user action.
func (db *DB) PutDiscoveries(ctx context.Context, discoveries []domain.ConsolidatedDiscovery) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, d := range discoveries {
		categories, err := json.Marshal(d.Categories)
		if err != nil {
			return fmt.Errorf("encode categories: %w", err)
		}
		sources, err := json.Marshal(d.Sources)
		if err != nil {
			return fmt.Errorf("encode sources: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO discoveries (
				user_id, session_id, place_id, display_name, categories_json,
				rating, rating_count, latitude, longitude, address,
				sources_json, on_demand_hits, route_query_hits,
				saved, dismissed, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
			ON CONFLICT(user_id, session_id, place_id) DO UPDATE SET
				display_name     = excluded.display_name,
				categories_json  = excluded.categories_json,
				rating           = excluded.rating,
				rating_count     = excluded.rating_count,
				latitude         = excluded.latitude,
				longitude        = excluded.longitude,
				address          = excluded.address,
				sources_json     = excluded.sources_json,
				on_demand_hits   = excluded.on_demand_hits,
				route_query_hits = excluded.route_query_hits,
				updated_at       = excluded.updated_at
		`, d.UserID, d.SessionID, d.PlaceID, d.DisplayName, string(categories),
			d.Rating, d.RatingCount, d.Latitude, d.Longitude, d.Address,
			string(sources), d.OnDemandHitCount, d.RouteQueryHitCount,
			encodeTime(d.CreatedAt), encodeTime(d.UpdatedAt))
		if err != nil {
			return fmt.Errorf("upsert discovery %s: %w", d.PlaceID, err)
		}
	}
	return tx.Commit()
}

// ListDiscoveries returns a session's consolidated discoveries.
func (db *DB) ListDiscoveries(ctx context.Context, userID, sessionID string) ([]domain.ConsolidatedDiscovery, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT user_id, session_id, place_id, display_name, categories_json,
			rating, rating_count, latitude, longitude, address,
			sources_json, on_demand_hits, route_query_hits,
			saved, dismissed, created_at, updated_at
		FROM discoveries
		WHERE user_id = ? AND session_id = ?
		ORDER BY rating DESC, place_id
	`, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list discoveries: %w", err)
	}
	defer rows.Close()

	var out []domain.ConsolidatedDiscovery
	for rows.Next() {
		var d domain.ConsolidatedDiscovery
		var categoriesJSON, sourcesJSON, createdAt, updatedAt string
		var saved, dismissed int
		if err := rows.Scan(
			&d.UserID, &d.SessionID, &d.PlaceID, &d.DisplayName, &categoriesJSON,
			&d.Rating, &d.RatingCount, &d.Latitude, &d.Longitude, &d.Address,
			&sourcesJSON, &d.OnDemandHitCount, &d.RouteQueryHitCount,
			&saved, &dismissed, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan discovery: %w", err)
		}
		if err := json.Unmarshal([]byte(categoriesJSON), &d.Categories); err != nil {
			d.Categories = nil
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &d.Sources); err != nil {
			d.Sources = nil
		}
		d.Saved = saved == 1
		d.Dismissed = dismissed == 1
		d.CreatedAt = decodeTime(createdAt)
		d.UpdatedAt = decodeTime(updatedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetSaved marks a discovery saved or unsaved.
func (db *DB) SetSaved(ctx context.Context, userID, sessionID, placeID string, saved bool) error {
	return db.setFlag(ctx, "saved", userID, sessionID, placeID, saved)
}

// SetDismissed marks a discovery dismissed or restored.
func (db *DB) SetDismissed(ctx context.Context, userID, sessionID, placeID string, dismissed bool) error {
	return db.setFlag(ctx, "dismissed", userID, sessionID, placeID, dismissed)
}

func (db *DB) setFlag(ctx context.Context, column, userID, sessionID, placeID string, value bool) error {
	v := 0
	if value {
		v = 1
	}
	res, err := db.db.ExecContext(ctx,
		`UPDATE discoveries SET `+column+` = ?, updated_at = ?
		 WHERE user_id = ? AND session_id = ? AND place_id = ?`,
		v, encodeTime(time.Now()), userID, sessionID, placeID)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrDiscoveryNotFound
	}
	return nil
}
