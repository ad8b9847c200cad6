package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // cgo-free SQLite driver

	"github.com/isahooman/rolewarden/internal/models"
	"github.com/isahooman/rolewarden/internal/store/migrations"
)

// SQLStore persists grants in the two-table relational schema. Every mutation
// is one statement, so the engine's statement atomicity is the durability
// boundary. The same SQL works against Postgres and SQLite: placeholders are
// written $1..$N in strict order of occurrence, which both engines bind
// positionally.
type SQLStore struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenPostgres connects to Postgres, verifies the connection and brings the
// grant schema up to date.
func OpenPostgres(dsn string, log *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := migrations.Up(db, "postgres"); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("grant store connected", zap.String("backend", "postgres"))
	return &SQLStore{db: db, log: log}, nil
}

// OpenSQLite opens (or creates) a SQLite grant database at path and brings
// the schema up to date.
func OpenSQLite(path string, log *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if err := migrations.Up(db, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("grant store connected", zap.String("backend", "sqlite"), zap.String("path", path))
	return &SQLStore{db: db, log: log}, nil
}

// AddServerManager grants a role blanket management rights in a guild.
func (s *SQLStore) AddServerManager(ctx context.Context, guildID, roleID string) (bool, error) {
	if !validIDs(guildID, roleID) {
		return false, nil
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO server_managers (guild_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		guildID, roleID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add server manager: %w", err)
	}
	inserted, err := changed(result)
	if err != nil {
		return false, err
	}
	if inserted {
		s.log.Info("added server manager role",
			zap.String("guild_id", guildID), zap.String("role_id", roleID))
	}
	return inserted, nil
}

// RemoveServerManager revokes a server-manager role.
func (s *SQLStore) RemoveServerManager(ctx context.Context, guildID, roleID string) (bool, error) {
	if !validIDs(guildID, roleID) {
		return false, nil
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM server_managers WHERE guild_id = $1 AND role_id = $2`,
		guildID, roleID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove server manager: %w", err)
	}
	deleted, err := changed(result)
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info("removed server manager role",
			zap.String("guild_id", guildID), zap.String("role_id", roleID))
	}
	return deleted, nil
}

// AddRoleManager grants a user management rights over one role.
func (s *SQLStore) AddRoleManager(ctx context.Context, guildID, roleID, userID string) (bool, error) {
	if !validIDs(guildID, roleID, userID) {
		return false, nil
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO role_managers (guild_id, role_id, user_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		guildID, roleID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add role manager: %w", err)
	}
	inserted, err := changed(result)
	if err != nil {
		return false, err
	}
	if inserted {
		s.log.Info("added role manager",
			zap.String("guild_id", guildID), zap.String("role_id", roleID), zap.String("user_id", userID))
	}
	return inserted, nil
}

// RemoveRoleManager revokes a user's management rights over one role.
func (s *SQLStore) RemoveRoleManager(ctx context.Context, guildID, roleID, userID string) (bool, error) {
	if !validIDs(guildID, roleID, userID) {
		return false, nil
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM role_managers WHERE guild_id = $1 AND role_id = $2 AND user_id = $3`,
		guildID, roleID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove role manager: %w", err)
	}
	deleted, err := changed(result)
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info("removed role manager",
			zap.String("guild_id", guildID), zap.String("role_id", roleID), zap.String("user_id", userID))
	}
	return deleted, nil
}

// IsServerManager reports whether the role is a server-manager role.
func (s *SQLStore) IsServerManager(ctx context.Context, guildID, roleID string) (bool, error) {
	if !validIDs(guildID, roleID) {
		return false, nil
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM server_managers WHERE guild_id = $1 AND role_id = $2)`,
		guildID, roleID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check server manager: %w", err)
	}
	return exists, nil
}

// IsRoleManager reports whether the user manages the given role.
func (s *SQLStore) IsRoleManager(ctx context.Context, guildID, roleID, userID string) (bool, error) {
	if !validIDs(guildID, roleID, userID) {
		return false, nil
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM role_managers WHERE guild_id = $1 AND role_id = $2 AND user_id = $3)`,
		guildID, roleID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check role manager: %w", err)
	}
	return exists, nil
}

// GetServerManagers returns the server-manager role IDs for the guild.
func (s *SQLStore) GetServerManagers(ctx context.Context, guildID string) ([]string, error) {
	if !validIDs(guildID) {
		return []string{}, nil
	}
	return s.queryIDs(ctx,
		`SELECT role_id FROM server_managers WHERE guild_id = $1 ORDER BY role_id`,
		guildID,
	)
}

// GetManagedRoles returns the role IDs with at least one role manager.
func (s *SQLStore) GetManagedRoles(ctx context.Context, guildID string) ([]string, error) {
	if !validIDs(guildID) {
		return []string{}, nil
	}
	return s.queryIDs(ctx,
		`SELECT DISTINCT role_id FROM role_managers WHERE guild_id = $1 ORDER BY role_id`,
		guildID,
	)
}

// GetRoleManagers returns the user IDs that manage the given role.
func (s *SQLStore) GetRoleManagers(ctx context.Context, guildID, roleID string) ([]string, error) {
	if !validIDs(guildID, roleID) {
		return []string{}, nil
	}
	return s.queryIDs(ctx,
		`SELECT user_id FROM role_managers WHERE guild_id = $1 AND role_id = $2 ORDER BY user_id`,
		guildID, roleID,
	)
}

func (s *SQLStore) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan grant row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grant rows: %w", err)
	}
	return ids, nil
}

// AllGrants returns every stored grant.
func (s *SQLStore) AllGrants(ctx context.Context) (Grants, error) {
	var grants Grants

	rows, err := s.db.QueryContext(ctx, `SELECT guild_id, role_id FROM server_managers`)
	if err != nil {
		return grants, fmt.Errorf("failed to query server managers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var grant models.ServerManagerGrant
		if err := rows.Scan(&grant.GuildID, &grant.RoleID); err != nil {
			return grants, fmt.Errorf("failed to scan server manager row: %w", err)
		}
		grants.ServerManagers = append(grants.ServerManagers, grant)
	}
	if err := rows.Err(); err != nil {
		return grants, fmt.Errorf("failed to iterate server manager rows: %w", err)
	}

	roleRows, err := s.db.QueryContext(ctx, `SELECT guild_id, role_id, user_id FROM role_managers`)
	if err != nil {
		return grants, fmt.Errorf("failed to query role managers: %w", err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var grant models.RoleManagerGrant
		if err := roleRows.Scan(&grant.GuildID, &grant.RoleID, &grant.UserID); err != nil {
			return grants, fmt.Errorf("failed to scan role manager row: %w", err)
		}
		grants.RoleManagers = append(grants.RoleManagers, grant)
	}
	if err := roleRows.Err(); err != nil {
		return grants, fmt.Errorf("failed to iterate role manager rows: %w", err)
	}

	return grants, nil
}

// DeleteGrantsNotIn removes every grant for the guild whose role ID is absent
// from validRoleIDs. Each table is cleaned with one bulk statement.
func (s *SQLStore) DeleteGrantsNotIn(ctx context.Context, guildID string, validRoleIDs map[string]struct{}) (PruneResult, error) {
	var result PruneResult
	if !validIDs(guildID) {
		return result, nil
	}

	serverQuery := `DELETE FROM server_managers WHERE guild_id = $1`
	roleQuery := `DELETE FROM role_managers WHERE guild_id = $1`
	args := []any{guildID}

	if len(validRoleIDs) > 0 {
		placeholders := make([]string, 0, len(validRoleIDs))
		for i := 0; i < len(validRoleIDs); i++ {
			placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		}
		notIn := fmt.Sprintf(" AND role_id NOT IN (%s)", strings.Join(placeholders, ", "))
		serverQuery += notIn
		roleQuery += notIn
		for roleID := range validRoleIDs {
			args = append(args, roleID)
		}
	}

	serverResult, err := s.db.ExecContext(ctx, serverQuery, args...)
	if err != nil {
		return result, fmt.Errorf("failed to prune server managers: %w", err)
	}
	removed, err := serverResult.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("failed to count pruned server managers: %w", err)
	}
	result.RemovedServerManagers = int(removed)

	roleResult, err := s.db.ExecContext(ctx, roleQuery, args...)
	if err != nil {
		return result, fmt.Errorf("failed to prune role managers: %w", err)
	}
	removed, err = roleResult.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("failed to count pruned role managers: %w", err)
	}
	result.RemovedRoleManagers = int(removed)

	if result.RemovedServerManagers > 0 || result.RemovedRoleManagers > 0 {
		s.log.Info("pruned stale grants",
			zap.String("guild_id", guildID),
			zap.Int("server_managers", result.RemovedServerManagers),
			zap.Int("role_managers", result.RemovedRoleManagers))
	}
	return result, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func changed(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}
