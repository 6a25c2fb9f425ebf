package repository

import (
	"context"
	"fmt"

	"github.com/langchou/fleetgazer/internal/models"
)

// BranchRepository 门店数据仓库
type BranchRepository struct {
	q Querier
}

// NewBranchRepository 创建门店仓库
func NewBranchRepository(db *DB) *BranchRepository {
	return &BranchRepository{q: db.Pool}
}

func (r *BranchRepository) withQuerier(q Querier) *BranchRepository {
	return &BranchRepository{q: q}
}

// Create 创建门店
func (r *BranchRepository) Create(ctx context.Context, branch *models.Branch) error {
	query := `INSERT INTO branches (city) VALUES ($1) RETURNING id`
	if err := r.q.QueryRow(ctx, query, branch.City).Scan(&branch.ID); err != nil {
		return fmt.Errorf("insert branch: %w", classify(err))
	}
	return nil
}

// GetByCity 通过城市获取门店
func (r *BranchRepository) GetByCity(ctx context.Context, city string) (*models.Branch, error) {
	query := `SELECT id, city FROM branches WHERE city = $1`
	branch := &models.Branch{}
	if err := r.q.QueryRow(ctx, query, city).Scan(&branch.ID, &branch.City); err != nil {
		return nil, fmt.Errorf("get branch by city: %w", classify(err))
	}
	return branch, nil
}

// GetByID 通过 ID 获取门店
func (r *BranchRepository) GetByID(ctx context.Context, id int64) (*models.Branch, error) {
	query := `SELECT id, city FROM branches WHERE id = $1`
	branch := &models.Branch{}
	if err := r.q.QueryRow(ctx, query, id).Scan(&branch.ID, &branch.City); err != nil {
		return nil, fmt.Errorf("get branch by id: %w", classify(err))
	}
	return branch, nil
}

// List 获取所有门店
func (r *BranchRepository) List(ctx context.Context) ([]models.Branch, error) {
	query := `SELECT id, city FROM branches ORDER BY id`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var branches []models.Branch
	for rows.Next() {
		var branch models.Branch
		if err := rows.Scan(&branch.ID, &branch.City); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		branches = append(branches, branch)
	}
	return branches, rows.Err()
}
