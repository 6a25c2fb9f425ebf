package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/langchou/fleetgazer/internal/models"
)

// DistanceRepository 门店间距离仓库。距离矩阵在热路径上只读，
// 带 TTL 的进程内缓存避免每次候选分类都查库。
type DistanceRepository struct {
	q   Querier
	ttl time.Duration

	mu    sync.RWMutex
	cache map[distanceKey]distanceEntry
}

type distanceKey struct {
	from, to int64
}

type distanceEntry struct {
	km       int
	known    bool
	cachedAt time.Time
}

// NewDistanceRepository 创建距离仓库
func NewDistanceRepository(db *DB, cacheTTL time.Duration) *DistanceRepository {
	return &DistanceRepository{
		q:     db.Pool,
		ttl:   cacheTTL,
		cache: make(map[distanceKey]distanceEntry),
	}
}

// Create 创建有向距离
func (r *DistanceRepository) Create(ctx context.Context, d *models.Distance) error {
	if d.FromBranch == d.ToBranch {
		return fmt.Errorf("can not create distance between the same branch")
	}
	query := `
		INSERT INTO distances (from_branch, to_branch, distance_km)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := r.q.QueryRow(ctx, query, d.FromBranch, d.ToBranch, d.DistanceKm).Scan(&d.ID); err != nil {
		return fmt.Errorf("insert distance: %w", classify(err))
	}

	r.mu.Lock()
	delete(r.cache, distanceKey{from: d.FromBranch, to: d.ToBranch})
	r.mu.Unlock()
	return nil
}

// List 获取所有距离
func (r *DistanceRepository) List(ctx context.Context) ([]models.Distance, error) {
	query := `SELECT id, from_branch, to_branch, distance_km FROM distances ORDER BY id`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list distances: %w", err)
	}
	defer rows.Close()

	var distances []models.Distance
	for rows.Next() {
		var d models.Distance
		if err := rows.Scan(&d.ID, &d.FromBranch, &d.ToBranch, &d.DistanceKm); err != nil {
			return nil, fmt.Errorf("scan distance: %w", err)
		}
		distances = append(distances, d)
	}
	return distances, rows.Err()
}

// DistanceKm 查询有向距离。第二个返回值为 false 表示两店之间没有已知路线。
// 方向严格：不会用 (a,b) 推导 (b,a)。
func (r *DistanceRepository) DistanceKm(ctx context.Context, fromBranch, toBranch int64) (int, bool, error) {
	key := distanceKey{from: fromBranch, to: toBranch}

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && time.Since(entry.cachedAt) < r.ttl {
		return entry.km, entry.known, nil
	}

	query := `SELECT distance_km FROM distances WHERE from_branch = $1 AND to_branch = $2`
	var km int
	err := r.q.QueryRow(ctx, query, fromBranch, toBranch).Scan(&km)
	known := true
	if err != nil {
		if classify(err) != ErrNotFound {
			return 0, false, fmt.Errorf("get distance: %w", err)
		}
		km, known = 0, false
	}

	r.mu.Lock()
	r.cache[key] = distanceEntry{km: km, known: known, cachedAt: time.Now()}
	r.mu.Unlock()

	return km, known, nil
}
