package db

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenmeta/internal/models"
)

// UpsertTokenMetadata stores the fetched metadata of tokens on a network. An
// existing row for the same (network, address) is replaced.
func (d *DB) UpsertTokenMetadata(network models.Network, tokens []models.TokenMetadata) error {
	if len(tokens) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	valueStrings := make([]string, 0, len(tokens))
	valueArgs := make([]interface{}, 0, len(tokens)*7)

	// A statement may not touch the same conflict row twice, so later
	// duplicates overwrite earlier ones before building the insert.
	seen := make(map[common.Address]int, len(tokens))
	for _, t := range tokens {
		args := []interface{}{string(network), t.Address.Hex(), t.ChainID, t.Name, t.Symbol, t.Decimals, now}
		if i, ok := seen[t.Address]; ok {
			copy(valueArgs[i*7:i*7+7], args)
			continue
		}
		seen[t.Address] = len(valueStrings)
		valueStrings = append(valueStrings, "(?, ?, ?, ?, ?, ?, ?)")
		valueArgs = append(valueArgs, args...)
	}

	query := `INSERT INTO token_metadata (network, address, chain_id, name, symbol, decimals, fetched_at)
		 VALUES ` + strings.Join(valueStrings, ", ") + `
		 ON CONFLICT(network, address) DO UPDATE SET
		   chain_id = excluded.chain_id,
		   name = excluded.name,
		   symbol = excluded.symbol,
		   decimals = excluded.decimals,
		   fetched_at = excluded.fetched_at`

	if _, err := tx.Exec(query, valueArgs...); err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert token metadata for %s: %w", network, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit token metadata: %w", err)
	}

	slog.Debug("token metadata stored", "network", network, "count", len(valueStrings))
	return nil
}

// ListTokenMetadata returns the stored metadata of a network ordered by address.
func (d *DB) ListTokenMetadata(network models.Network) ([]models.TokenMetadata, error) {
	rows, err := d.conn.Query(
		`SELECT address, chain_id, name, symbol, decimals
		 FROM token_metadata WHERE network = ? ORDER BY address`,
		string(network),
	)
	if err != nil {
		return nil, fmt.Errorf("query token metadata for %s: %w", network, err)
	}
	defer rows.Close()

	tokens := []models.TokenMetadata{}
	for rows.Next() {
		var (
			md      models.TokenMetadata
			address string
		)
		if err := rows.Scan(&address, &md.ChainID, &md.Name, &md.Symbol, &md.Decimals); err != nil {
			return nil, fmt.Errorf("scan token metadata row: %w", err)
		}
		md.Address = common.HexToAddress(address)
		tokens = append(tokens, md)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token metadata rows: %w", err)
	}

	slog.Debug("token metadata listed", "network", network, "count", len(tokens))
	return tokens, nil
}

// RecordFetchRun stores the outcome of one fetch and returns its id.
func (d *DB) RecordFetchRun(run models.FetchRun) (int64, error) {
	var errMsg interface{}
	if run.Error != "" {
		errMsg = run.Error
	}

	res, err := d.conn.Exec(
		`INSERT INTO fetch_runs (network, token_count, fallback_count, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(run.Network), run.TokenCount, run.FallbackCount, run.DurationMs, errMsg,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("insert fetch run for %s: %w", run.Network, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("fetch run id: %w", err)
	}

	slog.Debug("fetch run recorded",
		"id", id,
		"network", run.Network,
		"tokens", run.TokenCount,
		"fallbacks", run.FallbackCount,
	)
	return id, nil
}

// ListFetchRuns returns the most recent fetch runs of a network, newest first.
// An empty network lists runs of every network.
func (d *DB) ListFetchRuns(network models.Network, limit int) ([]models.FetchRun, error) {
	query := `SELECT id, network, token_count, fallback_count, duration_ms, COALESCE(error, ''), created_at
		 FROM fetch_runs`
	args := []interface{}{}
	if network != "" {
		query += " WHERE network = ?"
		args = append(args, string(network))
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fetch runs: %w", err)
	}
	defer rows.Close()

	runs := []models.FetchRun{}
	for rows.Next() {
		var run models.FetchRun
		if err := rows.Scan(&run.ID, &run.Network, &run.TokenCount, &run.FallbackCount,
			&run.DurationMs, &run.Error, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fetch run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetch run rows: %w", err)
	}

	return runs, nil
}
