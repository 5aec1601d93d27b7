package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"canvas-copilot/internal/domain"
)

// SQLiteStore implements domain.ShapeStore and domain.OperationStore on a
// single SQLite database. Batched writes are single transactions, so a
// bulk creation of N shapes plus the canvas timestamp commits atomically.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time // for testing
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open canvas db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate canvas db: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS shapes (
			canvas_id        TEXT NOT NULL,
			id               TEXT NOT NULL,
			type             TEXT NOT NULL,
			x                REAL NOT NULL,
			y                REAL NOT NULL,
			width            REAL NOT NULL,
			height           REAL NOT NULL,
			rotation         REAL NOT NULL DEFAULT 0,
			opacity          REAL NOT NULL DEFAULT 1,
			fill             TEXT NOT NULL,
			text             TEXT NOT NULL DEFAULT '',
			font_size        REAL NOT NULL DEFAULT 0,
			z_index          INTEGER NOT NULL,
			created_by       TEXT NOT NULL,
			created_at       TEXT NOT NULL,
			last_modified_by TEXT NOT NULL,
			last_modified_at TEXT NOT NULL,
			is_locked        INTEGER NOT NULL DEFAULT 0,
			locked_by        TEXT NOT NULL DEFAULT '',
			locked_at        TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (canvas_id, id)
		);
		CREATE INDEX IF NOT EXISTS idx_shapes_zindex ON shapes(canvas_id, z_index);

		CREATE TABLE IF NOT EXISTS canvas_metadata (
			canvas_id    TEXT PRIMARY KEY,
			last_updated TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS operations (
			user_id    TEXT NOT NULL,
			id         TEXT NOT NULL,
			canvas_id  TEXT NOT NULL,
			ts         TEXT NOT NULL,
			reversible INTEGER NOT NULL,
			undone     INTEGER NOT NULL DEFAULT 0,
			tool_calls TEXT NOT NULL,
			PRIMARY KEY (user_id, id)
		);

		CREATE TABLE IF NOT EXISTS last_operations (
			user_id      TEXT PRIMARY KEY,
			operation_id TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

const shapeColumns = `id, type, x, y, width, height, rotation, opacity, fill, text, font_size,
	z_index, created_by, created_at, last_modified_by, last_modified_at, is_locked, locked_by, locked_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanShape(row scanner) (*domain.Shape, error) {
	var sh domain.Shape
	var typ, createdAt, modifiedAt, lockedAt string
	var isLocked int
	err := row.Scan(&sh.ID, &typ, &sh.X, &sh.Y, &sh.Width, &sh.Height, &sh.Rotation,
		&sh.Opacity, &sh.Fill, &sh.Text, &sh.FontSize, &sh.ZIndex,
		&sh.CreatedBy, &createdAt, &sh.LastModifiedBy, &modifiedAt,
		&isLocked, &sh.LockedBy, &lockedAt)
	if err != nil {
		return nil, err
	}
	sh.Type = domain.ShapeType(typ)
	sh.IsLocked = isLocked != 0
	sh.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sh.LastModifiedAt, _ = time.Parse(time.RFC3339Nano, modifiedAt)
	if lockedAt != "" {
		sh.LockedAt, _ = time.Parse(time.RFC3339Nano, lockedAt)
	}
	return &sh, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ListShapes returns all shapes on the canvas ordered by zIndex ascending.
func (s *SQLiteStore) ListShapes(ctx context.Context, canvasID string) ([]domain.Shape, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+shapeColumns+" FROM shapes WHERE canvas_id = ? ORDER BY z_index ASC, id ASC", canvasID)
	if err != nil {
		return nil, domain.WrapOp("ShapeStore.List", err)
	}
	defer rows.Close()

	var shapes []domain.Shape
	for rows.Next() {
		sh, err := scanShape(rows)
		if err != nil {
			return nil, domain.WrapOp("ShapeStore.List", err)
		}
		shapes = append(shapes, *sh)
	}
	return shapes, rows.Err()
}

// GetShape returns one shape, or ErrNotFound.
func (s *SQLiteStore) GetShape(ctx context.Context, canvasID, shapeID string) (*domain.Shape, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+shapeColumns+" FROM shapes WHERE canvas_id = ? AND id = ?", canvasID, shapeID)
	sh, err := scanShape(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewDomainError("ShapeStore.Get", domain.ErrNotFound, shapeID)
	}
	if err != nil {
		return nil, domain.WrapOp("ShapeStore.Get", err)
	}
	return sh, nil
}

// MaxZIndex returns the highest zIndex on the canvas, 0 when empty.
func (s *SQLiteStore) MaxZIndex(ctx context.Context, canvasID string) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(z_index), 0) FROM shapes WHERE canvas_id = ?", canvasID).Scan(&max)
	if err != nil {
		return 0, domain.WrapOp("ShapeStore.MaxZIndex", err)
	}
	return max, nil
}

// CreateShape writes one fully-formed shape and bumps the canvas timestamp.
func (s *SQLiteStore) CreateShape(ctx context.Context, canvasID string, sh *domain.Shape) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapOp("ShapeStore.Create", err)
	}
	defer tx.Rollback()

	if err := insertShape(ctx, tx, canvasID, sh); err != nil {
		return domain.WrapOp("ShapeStore.Create", err)
	}
	if err := touchCanvasTx(ctx, tx, canvasID, s.now()); err != nil {
		return domain.WrapOp("ShapeStore.Create", err)
	}
	return tx.Commit()
}

func insertShape(ctx context.Context, tx *sql.Tx, canvasID string, sh *domain.Shape) error {
	isLocked := 0
	if sh.IsLocked {
		isLocked = 1
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO shapes (canvas_id, `+shapeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		canvasID, sh.ID, string(sh.Type), sh.X, sh.Y, sh.Width, sh.Height,
		sh.Rotation, sh.Opacity, sh.Fill, sh.Text, sh.FontSize, sh.ZIndex,
		sh.CreatedBy, formatTime(sh.CreatedAt), sh.LastModifiedBy,
		formatTime(sh.LastModifiedAt), isLocked, sh.LockedBy, formatTime(sh.LockedAt))
	return err
}

// PatchShape merge-updates a shape on behalf of userID with an optimistic
// soft-lock check. A fresh lock held by someone else rejects the write; a
// stale lock is cleared implicitly.
func (s *SQLiteStore) PatchShape(ctx context.Context, canvasID, shapeID, userID string, patch domain.ShapePatch) (*domain.Shape, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapOp("ShapeStore.Patch", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+shapeColumns+" FROM shapes WHERE canvas_id = ? AND id = ?", canvasID, shapeID)
	sh, err := scanShape(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewDomainError("ShapeStore.Patch", domain.ErrNotFound, shapeID)
	}
	if err != nil {
		return nil, domain.WrapOp("ShapeStore.Patch", err)
	}

	if sh.LockedAgainst(userID, now) {
		return nil, domain.NewDomainError("ShapeStore.Patch", domain.ErrLockConflict,
			fmt.Sprintf("shape %s is locked by %s", shapeID, sh.LockedBy))
	}

	patch.Apply(sh)
	sh.LastModifiedBy = userID
	sh.LastModifiedAt = now
	if sh.IsLocked && sh.LockedBy != userID {
		// Stale lock from another user: stolen implicitly by this write.
		sh.IsLocked = false
		sh.LockedBy = ""
		sh.LockedAt = time.Time{}
	}

	if err := updateShapeTx(ctx, tx, canvasID, sh); err != nil {
		return nil, domain.WrapOp("ShapeStore.Patch", err)
	}
	if err := touchCanvasTx(ctx, tx, canvasID, now); err != nil {
		return nil, domain.WrapOp("ShapeStore.Patch", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.WrapOp("ShapeStore.Patch", err)
	}
	return sh, nil
}

func updateShapeTx(ctx context.Context, tx *sql.Tx, canvasID string, sh *domain.Shape) error {
	isLocked := 0
	if sh.IsLocked {
		isLocked = 1
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE shapes SET x = ?, y = ?, width = ?, height = ?, rotation = ?, opacity = ?,
			fill = ?, text = ?, font_size = ?, last_modified_by = ?, last_modified_at = ?,
			is_locked = ?, locked_by = ?, locked_at = ?
		WHERE canvas_id = ? AND id = ?`,
		sh.X, sh.Y, sh.Width, sh.Height, sh.Rotation, sh.Opacity,
		sh.Fill, sh.Text, sh.FontSize, sh.LastModifiedBy, formatTime(sh.LastModifiedAt),
		isLocked, sh.LockedBy, formatTime(sh.LockedAt), canvasID, sh.ID)
	return err
}

// DeleteShapes removes the named shapes, tolerating missing IDs and
// skipping shapes freshly locked by another user.
func (s *SQLiteStore) DeleteShapes(ctx context.Context, canvasID, userID string, shapeIDs []string) ([]string, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapOp("ShapeStore.Delete", err)
	}
	defer tx.Rollback()

	var deleted []string
	for _, id := range shapeIDs {
		row := tx.QueryRowContext(ctx,
			"SELECT is_locked, locked_by, locked_at FROM shapes WHERE canvas_id = ? AND id = ?",
			canvasID, id)
		var isLocked int
		var lockedBy, lockedAt string
		err := row.Scan(&isLocked, &lockedBy, &lockedAt)
		if err == sql.ErrNoRows {
			continue // already gone
		}
		if err != nil {
			return nil, domain.WrapOp("ShapeStore.Delete", err)
		}

		sh := domain.Shape{IsLocked: isLocked != 0, LockedBy: lockedBy}
		if lockedAt != "" {
			sh.LockedAt, _ = time.Parse(time.RFC3339Nano, lockedAt)
		}
		if sh.LockedAgainst(userID, now) {
			continue
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM shapes WHERE canvas_id = ? AND id = ?", canvasID, id); err != nil {
			return nil, domain.WrapOp("ShapeStore.Delete", err)
		}
		deleted = append(deleted, id)
	}

	if len(deleted) > 0 {
		if err := touchCanvasTx(ctx, tx, canvasID, now); err != nil {
			return nil, domain.WrapOp("ShapeStore.Delete", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.WrapOp("ShapeStore.Delete", err)
	}
	return deleted, nil
}

// BatchCreate commits all shapes plus the canvas lastUpdated timestamp in a
// single transaction.
func (s *SQLiteStore) BatchCreate(ctx context.Context, canvasID string, shapes []domain.Shape) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapOp("ShapeStore.BatchCreate", err)
	}
	defer tx.Rollback()

	for i := range shapes {
		if err := insertShape(ctx, tx, canvasID, &shapes[i]); err != nil {
			return domain.WrapOp("ShapeStore.BatchCreate", err)
		}
	}
	if err := touchCanvasTx(ctx, tx, canvasID, s.now()); err != nil {
		return domain.WrapOp("ShapeStore.BatchCreate", err)
	}
	return tx.Commit()
}

// BatchPatchPositions applies position-only updates in one transaction,
// skipping missing or lock-held shapes.
func (s *SQLiteStore) BatchPatchPositions(ctx context.Context, canvasID, userID string, moves []domain.PositionUpdate) ([]string, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapOp("ShapeStore.BatchPatchPositions", err)
	}
	defer tx.Rollback()

	var applied []string
	for _, m := range moves {
		row := tx.QueryRowContext(ctx,
			"SELECT is_locked, locked_by, locked_at FROM shapes WHERE canvas_id = ? AND id = ?",
			canvasID, m.ShapeID)
		var isLocked int
		var lockedBy, lockedAt string
		err := row.Scan(&isLocked, &lockedBy, &lockedAt)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, domain.WrapOp("ShapeStore.BatchPatchPositions", err)
		}

		sh := domain.Shape{IsLocked: isLocked != 0, LockedBy: lockedBy}
		if lockedAt != "" {
			sh.LockedAt, _ = time.Parse(time.RFC3339Nano, lockedAt)
		}
		if sh.LockedAgainst(userID, now) {
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE shapes SET x = ?, y = ?, last_modified_by = ?, last_modified_at = ?
			WHERE canvas_id = ? AND id = ?`,
			m.Pos.X, m.Pos.Y, userID, formatTime(now), canvasID, m.ShapeID); err != nil {
			return nil, domain.WrapOp("ShapeStore.BatchPatchPositions", err)
		}
		applied = append(applied, m.ShapeID)
	}

	if len(applied) > 0 {
		if err := touchCanvasTx(ctx, tx, canvasID, now); err != nil {
			return nil, domain.WrapOp("ShapeStore.BatchPatchPositions", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.WrapOp("ShapeStore.BatchPatchPositions", err)
	}
	return applied, nil
}

// TouchCanvas bumps the canvas lastUpdated timestamp.
func (s *SQLiteStore) TouchCanvas(ctx context.Context, canvasID string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canvas_metadata (canvas_id, last_updated) VALUES (?, ?)
		ON CONFLICT(canvas_id) DO UPDATE SET last_updated = excluded.last_updated`,
		canvasID, formatTime(t))
	return domain.WrapOp("ShapeStore.TouchCanvas", err)
}

func touchCanvasTx(ctx context.Context, tx *sql.Tx, canvasID string, t time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO canvas_metadata (canvas_id, last_updated) VALUES (?, ?)
		ON CONFLICT(canvas_id) DO UPDATE SET last_updated = excluded.last_updated`,
		canvasID, formatTime(t))
	return err
}

// CanvasLastUpdated returns the canvas metadata timestamp, zero when unset.
func (s *SQLiteStore) CanvasLastUpdated(ctx context.Context, canvasID string) (time.Time, error) {
	var ts string
	err := s.db.QueryRowContext(ctx,
		"SELECT last_updated FROM canvas_metadata WHERE canvas_id = ?", canvasID).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, domain.WrapOp("ShapeStore.CanvasLastUpdated", err)
	}
	t, _ := time.Parse(time.RFC3339Nano, ts)
	return t, nil
}

// --- OperationStore ---

// PutOperation persists an operation record.
func (s *SQLiteStore) PutOperation(ctx context.Context, op *domain.Operation) error {
	calls, err := json.Marshal(op.ToolCalls)
	if err != nil {
		return domain.WrapOp("OperationStore.Put", err)
	}
	reversible, undone := 0, 0
	if op.Reversible {
		reversible = 1
	}
	if op.Undone {
		undone = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations (user_id, id, canvas_id, ts, reversible, undone, tool_calls)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.UserID, op.ID, op.CanvasID, formatTime(op.Timestamp), reversible, undone, string(calls))
	return domain.WrapOp("OperationStore.Put", err)
}

// GetOperation returns one operation, or ErrNotFound.
func (s *SQLiteStore) GetOperation(ctx context.Context, userID, operationID string) (*domain.Operation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, canvas_id, ts, reversible, undone, tool_calls
		FROM operations WHERE user_id = ? AND id = ?`, userID, operationID)

	var op domain.Operation
	var ts, calls string
	var reversible, undone int
	err := row.Scan(&op.ID, &op.CanvasID, &ts, &reversible, &undone, &calls)
	if err == sql.ErrNoRows {
		return nil, domain.NewDomainError("OperationStore.Get", domain.ErrNotFound, operationID)
	}
	if err != nil {
		return nil, domain.WrapOp("OperationStore.Get", err)
	}
	op.UserID = userID
	op.Reversible = reversible != 0
	op.Undone = undone != 0
	op.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	if err := json.Unmarshal([]byte(calls), &op.ToolCalls); err != nil {
		return nil, domain.WrapOp("OperationStore.Get", err)
	}
	return &op, nil
}

// MarkUndone sets the undone marker on an operation.
func (s *SQLiteStore) MarkUndone(ctx context.Context, userID, operationID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE operations SET undone = 1 WHERE user_id = ? AND id = ?", userID, operationID)
	if err != nil {
		return domain.WrapOp("OperationStore.MarkUndone", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewDomainError("OperationStore.MarkUndone", domain.ErrNotFound, operationID)
	}
	return nil
}

// LastOperationID returns the user's last-operation pointer, "" when unset.
func (s *SQLiteStore) LastOperationID(ctx context.Context, userID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT operation_id FROM last_operations WHERE user_id = ?", userID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", domain.WrapOp("OperationStore.LastOperationID", err)
	}
	return id, nil
}

// SetLastOperation overwrites the user's last-operation pointer.
func (s *SQLiteStore) SetLastOperation(ctx context.Context, userID, operationID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO last_operations (user_id, operation_id) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET operation_id = excluded.operation_id`,
		userID, operationID)
	return domain.WrapOp("OperationStore.SetLastOperation", err)
}

// ClearLastOperation removes the user's last-operation pointer.
func (s *SQLiteStore) ClearLastOperation(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM last_operations WHERE user_id = ?", userID)
	return domain.WrapOp("OperationStore.ClearLastOperation", err)
}
