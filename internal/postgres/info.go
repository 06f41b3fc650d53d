package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/plexsphere/plexmon/internal/plugin"
)

// DriverName is the database/sql driver used to connect.
const DriverName = "postgres"

// Counters reported per database by DatabaseStats, in column order.
var Counters = []string{
	"numbackends",
	"xact_commit",
	"xact_rollback",
	"blks_read",
	"blks_hit",
	"tup_returned",
	"tup_fetched",
	"tup_inserted",
	"tup_updated",
	"tup_deleted",
	"disk_size",
}

const (
	paramsQuery      = `SHOW ALL`
	recoveryQuery    = `SELECT pg_is_in_recovery()`
	versionQuery     = `SELECT version()`
	startTimeQuery   = `SELECT pg_postmaster_start_time()`
	uptimeQuery      = `SELECT EXTRACT(EPOCH FROM now() - pg_postmaster_start_time())`
	databasesQuery   = `SELECT datname FROM pg_database ORDER BY datname`
	connectionsQuery = `SELECT datname, numbackends FROM pg_stat_database WHERE datname IS NOT NULL`
	databaseQuery    = `SELECT datname, numbackends, xact_commit, xact_rollback, blks_read, blks_hit,` +
		` tup_returned, tup_fetched, tup_inserted, tup_updated, tup_deleted, pg_database_size(datname)` +
		` FROM pg_stat_database WHERE datname IS NOT NULL`
)

// walQueries read transaction log positions as byte offsets. The functions
// were renamed from xlog to wal in PostgreSQL 10.
type walQueries struct {
	current string
	standby string
}

var (
	walQueries10 = walQueries{
		current: `SELECT pg_wal_lsn_diff(pg_current_wal_lsn(), '0/0')`,
		standby: `SELECT pg_wal_lsn_diff(pg_last_wal_receive_lsn(), '0/0'),` +
			` pg_wal_lsn_diff(pg_last_wal_replay_lsn(), '0/0')`,
	}
	xlogQueries = walQueries{
		current: `SELECT pg_xlog_location_diff(pg_current_xlog_location(), '0/0')`,
		standby: `SELECT pg_xlog_location_diff(pg_last_xlog_receive_location(), '0/0'),` +
			` pg_xlog_location_diff(pg_last_xlog_replay_location(), '0/0')`,
	}
)

// Server version numbers gating the transaction log queries.
const (
	minXlogVersion = 90200
	walVersion     = 100000
)

var versionRe = regexp.MustCompile(`(?i)^postgresql\s*([\d.]+)`)

// StatKey names the sample of counter for database db in DatabaseStats.
// Totals use db "total".
func StatKey(db, counter string) string {
	return db + "." + counter
}

// Info reads server statistics through a database handle.
type Info struct {
	db *sql.DB
}

// NewInfo creates an Info reading through db.
func NewInfo(db *sql.DB) *Info {
	return &Info{db: db}
}

// Version returns the server version number, e.g. "16.2".
func (i *Info) Version(ctx context.Context) (string, error) {
	var s string
	if err := i.db.QueryRowContext(ctx, versionQuery).Scan(&s); err != nil {
		return "", fmt.Errorf("postgres: version: %w", err)
	}
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("postgres: version: unexpected %q", s)
	}
	return m[1], nil
}

// StartTime returns the time the server started.
func (i *Info) StartTime(ctx context.Context) (time.Time, error) {
	var t time.Time
	if err := i.db.QueryRowContext(ctx, startTimeQuery).Scan(&t); err != nil {
		return time.Time{}, fmt.Errorf("postgres: start time: %w", err)
	}
	return t, nil
}

// Uptime reports "uptime", the seconds since the server started.
func (i *Info) Uptime(ctx context.Context) (plugin.Stats, error) {
	var secs float64
	if err := i.db.QueryRowContext(ctx, uptimeQuery).Scan(&secs); err != nil {
		return nil, fmt.Errorf("postgres: uptime: %w", err)
	}
	return plugin.Stats{"uptime": secs}, nil
}

// Databases lists the databases of the server.
func (i *Info) Databases(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, databasesQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: databases: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("postgres: databases: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: databases: %w", err)
	}
	return names, nil
}

// ConnectionStats reports the number of backends per database and their
// "total". A database named "total" only counts toward the total.
func (i *Info) ConnectionStats(ctx context.Context) (plugin.Stats, error) {
	rows, err := i.db.QueryContext(ctx, connectionsQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: connections: %w", err)
	}
	defer rows.Close()
	stats := make(plugin.Stats)
	var total float64
	for rows.Next() {
		var (
			name string
			n    float64
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("postgres: connections: %w", err)
		}
		total += n
		if name != totalField {
			stats[name] = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: connections: %w", err)
	}
	stats[totalField] = total
	return stats, nil
}

// DatabaseStats reports each of Counters per database and summed over all
// databases, keyed by StatKey. NULL values count as zero in totals and are
// absent per database. A database named "total" only counts toward the totals.
func (i *Info) DatabaseStats(ctx context.Context) (plugin.Stats, error) {
	rows, err := i.db.QueryContext(ctx, databaseQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: database stats: %w", err)
	}
	defer rows.Close()

	stats := make(plugin.Stats)
	totals := make([]float64, len(Counters))
	values := make([]sql.NullFloat64, len(Counters))
	dest := make([]any, len(Counters)+1)
	var name string
	dest[0] = &name
	for j := range values {
		dest[j+1] = &values[j]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("postgres: database stats: %w", err)
		}
		for j, c := range Counters {
			if !values[j].Valid {
				continue
			}
			totals[j] += values[j].Float64
			if name != totalField {
				stats[StatKey(name, c)] = values[j].Float64
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: database stats: %w", err)
	}
	for j, c := range Counters {
		stats[StatKey(totalField, c)] = totals[j]
	}
	return stats, nil
}

// Param returns the value of the run-time parameter name as SHOW prints it.
func (i *Info) Param(ctx context.Context, name string) (string, error) {
	var v string
	if err := i.db.QueryRowContext(ctx, "SHOW "+pq.QuoteIdentifier(name)).Scan(&v); err != nil {
		return "", fmt.Errorf("postgres: param %s: %w", name, err)
	}
	return v, nil
}

// Params returns every run-time parameter as SHOW ALL prints it.
func (i *Info) Params(ctx context.Context) (map[string]string, error) {
	rows, err := i.db.QueryContext(ctx, paramsQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: params: %w", err)
	}
	defer rows.Close()
	params := make(map[string]string)
	for rows.Next() {
		var name, setting, description string
		if err := rows.Scan(&name, &setting, &description); err != nil {
			return nil, fmt.Errorf("postgres: params: %w", err)
		}
		params[name] = setting
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: params: %w", err)
	}
	return params, nil
}

// Settings reports the run-time parameters whose value is a plain number,
// for example "max_connections".
func (i *Info) Settings(ctx context.Context) (plugin.Stats, error) {
	params, err := i.Params(ctx)
	if err != nil {
		return nil, err
	}
	stats := make(plugin.Stats, len(params))
	for name, v := range params {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			stats[name] = f
		}
	}
	return stats, nil
}

// XlogStatus reports the transaction log state. "in_recovery" is 1 on a
// standby. A primary reports its write position as "xlog_location"; a standby
// reports "xlog_receive_location" and "xlog_replay_location". Positions are
// byte offsets. Servers older than 9.2 are not supported.
func (i *Info) XlogStatus(ctx context.Context) (plugin.Stats, error) {
	v, err := i.Param(ctx, "server_version_num")
	if err != nil {
		return nil, fmt.Errorf("postgres: xlog status: %w", err)
	}
	num, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("postgres: xlog status: server_version_num %q: %w", v, err)
	}
	if num < minXlogVersion {
		return nil, fmt.Errorf("postgres: xlog status: server version %d: %w", num, plugin.ErrUnavailable)
	}
	queries := xlogQueries
	if num >= walVersion {
		queries = walQueries10
	}

	var inRecovery bool
	if err := i.db.QueryRowContext(ctx, recoveryQuery).Scan(&inRecovery); err != nil {
		return nil, fmt.Errorf("postgres: xlog status: %w", err)
	}
	if !inRecovery {
		var pos float64
		if err := i.db.QueryRowContext(ctx, queries.current).Scan(&pos); err != nil {
			return nil, fmt.Errorf("postgres: xlog status: %w", err)
		}
		return plugin.Stats{"in_recovery": 0, "xlog_location": pos}, nil
	}

	var received, replayed sql.NullFloat64
	if err := i.db.QueryRowContext(ctx, queries.standby).Scan(&received, &replayed); err != nil {
		return nil, fmt.Errorf("postgres: xlog status: %w", err)
	}
	stats := plugin.Stats{"in_recovery": 1}
	if received.Valid {
		stats["xlog_receive_location"] = received.Float64
	}
	if replayed.Valid {
		stats["xlog_replay_location"] = replayed.Float64
	}
	return stats, nil
}
