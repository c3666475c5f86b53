package assets

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/agjmills/assetadmin/internal/database/models"
	"gorm.io/gorm"
)

// Store is the record store for folders and files.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// All returns every asset. Order is left to the composer.
func (s *Store) All(ctx context.Context) ([]models.Asset, error) {
	var assets []models.Asset
	if err := s.db.WithContext(ctx).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	return assets, nil
}

// Get returns the asset with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uint) (*models.Asset, error) {
	if id == 0 {
		return nil, ErrNotFound
	}
	var asset models.Asset
	err := s.db.WithContext(ctx).First(&asset, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load asset %d: %w", id, err)
	}
	return &asset, nil
}

// GetFolder is Get restricted to folders. A file ID is reported as ErrNotFound.
func (s *Store) GetFolder(ctx context.Context, id uint) (*models.Asset, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !asset.IsFolder() {
		return nil, ErrNotFound
	}
	return asset, nil
}

// Children returns the direct children of parentID, optionally only folders.
func (s *Store) Children(ctx context.Context, parentID uint, foldersOnly bool) ([]models.Asset, error) {
	q := s.db.WithContext(ctx).Where("parent_id = ?", parentID)
	if foldersOnly {
		q = q.Where("kind = ?", models.KindFolder)
	}
	var children []models.Asset
	if err := q.Find(&children).Error; err != nil {
		return nil, fmt.Errorf("failed to load children of %d: %w", parentID, err)
	}
	return children, nil
}

// FilenameTaken reports whether any asset already uses filename.
func (s *Store) FilenameTaken(ctx context.Context, filename string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Asset{}).Where("filename = ?", filename).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check filename: %w", err)
	}
	return count > 0, nil
}

// Create inserts asset. A lost race on the unique filename surfaces as gorm.ErrDuplicatedKey.
func (s *Store) Create(ctx context.Context, asset *models.Asset) error {
	return s.db.WithContext(ctx).Create(asset).Error
}

// Descendants returns id's subtree below it, breadth first.
func (s *Store) Descendants(ctx context.Context, id uint) ([]models.Asset, error) {
	var out []models.Asset
	frontier := []uint{id}
	seen := map[uint]bool{id: true}
	for len(frontier) > 0 {
		var level []models.Asset
		if err := s.db.WithContext(ctx).Where("parent_id IN ?", frontier).Find(&level).Error; err != nil {
			return nil, fmt.Errorf("failed to load descendants of %d: %w", id, err)
		}
		frontier = frontier[:0]
		for _, a := range level {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			out = append(out, a)
			if a.IsFolder() {
				frontier = append(frontier, a.ID)
			}
		}
	}
	return out, nil
}

// DeleteTree removes asset and all descendants in one transaction and returns
// the removed rows, the root first.
func (s *Store) DeleteTree(ctx context.Context, asset *models.Asset) ([]models.Asset, error) {
	removed := []models.Asset{*asset}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		descendants, err := NewStore(tx).Descendants(ctx, asset.ID)
		if err != nil {
			return err
		}
		removed = append(removed, descendants...)

		ids := make([]uint, len(removed))
		for i, a := range removed {
			ids[i] = a.ID
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Asset{}).Error; err != nil {
			return fmt.Errorf("failed to delete assets: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Ancestors returns the folders above id, root-most first. id itself is included.
func (s *Store) Ancestors(ctx context.Context, id uint) ([]models.Asset, error) {
	var chain []models.Asset
	seen := map[uint]bool{}
	for id != 0 && !seen[id] {
		seen[id] = true
		asset, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *asset)
		id = asset.ParentID
	}
	slices.Reverse(chain)
	return chain, nil
}
