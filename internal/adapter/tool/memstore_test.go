package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"canvas-copilot/internal/domain"
)

// memStore is an in-memory ShapeStore + OperationStore for tool tests.
type memStore struct {
	mu      sync.Mutex
	shapes  map[string]map[string]*domain.Shape // canvasID -> shapeID -> shape
	ops     map[string]map[string]*domain.Operation
	lastOps map[string]string
	touched map[string]time.Time
	batches int // number of BatchCreate calls, to assert atomic commits
	now     func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		shapes:  make(map[string]map[string]*domain.Shape),
		ops:     make(map[string]map[string]*domain.Operation),
		lastOps: make(map[string]string),
		touched: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *memStore) canvas(canvasID string) map[string]*domain.Shape {
	c, ok := m.shapes[canvasID]
	if !ok {
		c = make(map[string]*domain.Shape)
		m.shapes[canvasID] = c
	}
	return c
}

func (m *memStore) ListShapes(ctx context.Context, canvasID string) ([]domain.Shape, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Shape
	for _, s := range m.canvas(canvasID) {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) GetShape(ctx context.Context, canvasID, shapeID string) (*domain.Shape, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.canvas(canvasID)[shapeID]
	if !ok {
		return nil, domain.NewDomainError("memStore.Get", domain.ErrNotFound, shapeID)
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) MaxZIndex(ctx context.Context, canvasID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, s := range m.canvas(canvasID) {
		if s.ZIndex > max {
			max = s.ZIndex
		}
	}
	return max, nil
}

func (m *memStore) CreateShape(ctx context.Context, canvasID string, s *domain.Shape) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.canvas(canvasID)
	if _, exists := c[s.ID]; exists {
		return fmt.Errorf("duplicate shape id %s", s.ID)
	}
	cp := *s
	c[s.ID] = &cp
	m.touched[canvasID] = m.now()
	return nil
}

func (m *memStore) PatchShape(ctx context.Context, canvasID, shapeID, userID string, patch domain.ShapePatch) (*domain.Shape, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.canvas(canvasID)[shapeID]
	if !ok {
		return nil, domain.NewDomainError("memStore.Patch", domain.ErrNotFound, shapeID)
	}
	now := m.now()
	if s.LockedAgainst(userID, now) {
		return nil, domain.NewDomainError("memStore.Patch", domain.ErrLockConflict, shapeID)
	}
	patch.Apply(s)
	s.LastModifiedBy = userID
	s.LastModifiedAt = now
	if s.IsLocked && s.LockedBy != userID {
		s.IsLocked = false
		s.LockedBy = ""
		s.LockedAt = time.Time{}
	}
	m.touched[canvasID] = now
	cp := *s
	return &cp, nil
}

func (m *memStore) DeleteShapes(ctx context.Context, canvasID, userID string, shapeIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.canvas(canvasID)
	now := m.now()
	var deleted []string
	for _, id := range shapeIDs {
		s, ok := c[id]
		if !ok {
			continue
		}
		if s.LockedAgainst(userID, now) {
			continue
		}
		delete(c, id)
		deleted = append(deleted, id)
	}
	if len(deleted) > 0 {
		m.touched[canvasID] = now
	}
	return deleted, nil
}

func (m *memStore) BatchCreate(ctx context.Context, canvasID string, shapes []domain.Shape) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.canvas(canvasID)
	for i := range shapes {
		if _, exists := c[shapes[i].ID]; exists {
			return fmt.Errorf("duplicate shape id %s", shapes[i].ID)
		}
	}
	for i := range shapes {
		cp := shapes[i]
		c[cp.ID] = &cp
	}
	m.batches++
	m.touched[canvasID] = m.now()
	return nil
}

func (m *memStore) BatchPatchPositions(ctx context.Context, canvasID, userID string, moves []domain.PositionUpdate) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.canvas(canvasID)
	now := m.now()
	var applied []string
	for _, mv := range moves {
		s, ok := c[mv.ShapeID]
		if !ok {
			continue
		}
		if s.LockedAgainst(userID, now) {
			continue
		}
		s.X, s.Y = mv.Pos.X, mv.Pos.Y
		s.LastModifiedBy = userID
		s.LastModifiedAt = now
		applied = append(applied, mv.ShapeID)
	}
	if len(applied) > 0 {
		m.touched[canvasID] = now
	}
	return applied, nil
}

func (m *memStore) TouchCanvas(ctx context.Context, canvasID string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[canvasID] = t
	return nil
}

func (m *memStore) PutOperation(ctx context.Context, op *domain.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.ops[op.UserID]
	if !ok {
		user = make(map[string]*domain.Operation)
		m.ops[op.UserID] = user
	}
	cp := *op
	user[op.ID] = &cp
	return nil
}

func (m *memStore) GetOperation(ctx context.Context, userID, operationID string) (*domain.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[userID][operationID]
	if !ok {
		return nil, domain.NewDomainError("memStore.GetOperation", domain.ErrNotFound, operationID)
	}
	cp := *op
	return &cp, nil
}

func (m *memStore) MarkUndone(ctx context.Context, userID, operationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[userID][operationID]
	if !ok {
		return domain.NewDomainError("memStore.MarkUndone", domain.ErrNotFound, operationID)
	}
	op.Undone = true
	return nil
}

func (m *memStore) LastOperationID(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOps[userID], nil
}

func (m *memStore) SetLastOperation(ctx context.Context, userID, operationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOps[userID] = operationID
	return nil
}

func (m *memStore) ClearLastOperation(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastOps, userID)
	return nil
}

var (
	_ domain.ShapeStore     = (*memStore)(nil)
	_ domain.OperationStore = (*memStore)(nil)
)

// testCtx returns a context carrying a user and the default canvas.
func testCtx(userID string) context.Context {
	ctx := domain.ContextWithUserID(context.Background(), userID)
	return domain.ContextWithCanvasID(ctx, domain.DefaultCanvasID)
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.Default()
}

// seedShape inserts a plain rectangle directly into the store.
func seedShape(t *testing.T, store *memStore, id string, z int) *domain.Shape {
	t.Helper()
	sh := &domain.Shape{
		ID: id, Type: domain.ShapeRectangle,
		X: 100, Y: 100, Width: 200, Height: 150,
		Opacity: 1, Fill: domain.DefaultFill, ZIndex: z,
		CreatedBy: "seed", LastModifiedBy: "seed",
	}
	if err := store.CreateShape(context.Background(), domain.DefaultCanvasID, sh); err != nil {
		t.Fatalf("seed shape: %v", err)
	}
	return sh
}
