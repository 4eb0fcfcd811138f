package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"schedbot/internal/schedule"
	logx "schedbot/pkg/logx"
)

const definitionColumns = `id, owner_id, origin_chat_id, body, day_of_week, hour, minute, target_id, target_label, created_at`

// sqlStore implements Store over database/sql. Queries are written with "?"
// placeholders and rebound for dialects that number them.
type sqlStore struct {
	db       *sql.DB
	log      logx.Logger
	numbered bool
	timeArg  func(time.Time) any
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) Create(ctx context.Context, def schedule.Definition) (int64, error) {
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO scheduled_messages(owner_id, origin_chat_id, body, day_of_week, hour, minute, target_id, target_label, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?) RETURNING id`),
		def.OwnerID, def.OriginChatID, def.Body, int(def.Day), def.Hour, def.Minute,
		def.TargetID, nullStr(def.TargetLabel), s.timeArg(def.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, fail("create", err)
	}
	return id, nil
}

func (s *sqlStore) Get(ctx context.Context, id int64) (schedule.Definition, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+definitionColumns+` FROM scheduled_messages WHERE id = ?`), id)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Definition{}, ErrNotFound
	}
	if err != nil {
		return schedule.Definition{}, fail("get", err)
	}
	return def, nil
}

func (s *sqlStore) ListByOwner(ctx context.Context, ownerID int64) ([]schedule.Definition, error) {
	defs, err := s.list(ctx, s.q(`SELECT `+definitionColumns+` FROM scheduled_messages WHERE owner_id = ? ORDER BY id`), ownerID)
	return defs, fail("list_by_owner", err)
}

func (s *sqlStore) ListAll(ctx context.Context) ([]schedule.Definition, error) {
	defs, err := s.list(ctx, `SELECT `+definitionColumns+` FROM scheduled_messages ORDER BY id`)
	return defs, fail("list_all", err)
}

func (s *sqlStore) DeleteIfOwned(ctx context.Context, id, ownerID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM scheduled_messages WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return false, fail("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fail("delete", err)
	}
	return n == 1, nil
}

func (s *sqlStore) list(ctx context.Context, query string, args ...any) ([]schedule.Definition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanDefinition reads numeric columns as text so a single malformed value
// yields an out-of-range field instead of failing the whole read.
func scanDefinition(sc scanner) (schedule.Definition, error) {
	var (
		def                                      schedule.Definition
		owner, origin, day, hour, minute, target sql.NullString
		body, label, created                     sql.NullString
	)
	if err := sc.Scan(&def.ID, &owner, &origin, &body, &day, &hour, &minute, &target, &label, &created); err != nil {
		return schedule.Definition{}, err
	}
	def.OwnerID = parseInt64(owner)
	def.OriginChatID = parseInt64(origin)
	def.Body = body.String
	def.Day = schedule.Day(parseInt(day))
	def.Hour = parseInt(hour)
	def.Minute = parseInt(minute)
	def.TargetID = target.String
	def.TargetLabel = label.String
	if created.Valid {
		def.CreatedAt, _ = time.Parse(time.RFC3339Nano, created.String)
	}
	return def, nil
}

func parseInt(v sql.NullString) int {
	if !v.Valid {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.String))
	if err != nil {
		return -1
	}
	return n
}

func parseInt64(v sql.NullString) int64 {
	if !v.Valid {
		return 0
	}
	n, _ := strconv.ParseInt(strings.TrimSpace(v.String), 10, 64)
	return n
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
