package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"unicode"

	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/agjmills/assetadmin/internal/logger"
	"github.com/agjmills/assetadmin/internal/metrics"
	"github.com/agjmills/assetadmin/internal/storage"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/maruel/natural"
	"gorm.io/gorm"
)

// ChildAdder is implemented by records that restrict who may add children below them.
type ChildAdder interface {
	CanAddChildren(u *models.User) bool
}

// Options configures a Service.
type Options struct {
	Composer          Composer
	Names             NameGenerator
	DefaultFolderName string
	MaxUploadSize     int64
}

// Service implements the file manager operations on top of the record store
// and a blob backend.
type Service struct {
	store *Store
	blobs storage.StorageBackend
	opts  Options
}

func NewService(db *gorm.DB, blobs storage.StorageBackend, opts Options) *Service {
	if opts.DefaultFolderName == "" {
		opts.DefaultFolderName = "NewFolder"
	}
	if opts.Composer.Categories == nil {
		opts.Composer.Categories = DefaultCategories()
	}
	return &Service{store: NewStore(db), blobs: blobs, opts: opts}
}

func (s *Service) Store() *Store { return s.store }

func (s *Service) Categories() Categories { return s.opts.Composer.Categories }

func (s *Service) DefaultFolderName() string { return s.opts.DefaultFolderName }

// List returns the composed, ordered listing for req. Pagination is left to the caller.
func (s *Service) List(ctx context.Context, actor *models.User, req ListRequest) ([]models.Asset, error) {
	all, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := s.opts.Composer.Compose(all, actor, req)
	metrics.ListingResults.Observe(float64(len(out)))
	return out, nil
}

// FindFolder returns the folder with id when actor may view it. Root (0) is
// reported as nil without error.
func (s *Service) FindFolder(ctx context.Context, actor *models.User, id uint) (*models.Asset, error) {
	if id == 0 {
		return nil, nil
	}
	folder, err := s.store.GetFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !folder.CanView(actor) {
		return nil, ErrNotFound
	}
	return folder, nil
}

// Ancestors returns the viewable folder chain ending at id, root-most first.
func (s *Service) Ancestors(ctx context.Context, actor *models.User, id uint) ([]models.Asset, error) {
	chain, err := s.store.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(chain, func(a models.Asset) bool { return !a.CanView(actor) }), nil
}

// sanitizeLeaf reduces a requested name to its final path element.
func sanitizeLeaf(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	leaf := path.Base(name)
	if leaf == "/" || leaf == "." {
		return ""
	}
	return leaf
}

var leafRules = []validation.Rule{
	validation.Required,
	validation.Length(1, 255),
	validation.NotIn("..").Error("must not be a parent reference"),
	validation.By(func(value any) error {
		s, _ := value.(string)
		if strings.IndexFunc(s, unicode.IsControl) >= 0 {
			return errors.New("must not contain control characters")
		}
		return nil
	}),
}

func validateLeaf(leaf string) error {
	if err := validation.Validate(leaf, leafRules...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return nil
}

// canAddUnder applies the parent's own child restriction. Root has none.
func canAddUnder(actor *models.User, parent *models.Asset) bool {
	if parent == nil {
		return true
	}
	adder, ok := any(parent).(ChildAdder)
	return !ok || adder.CanAddChildren(actor)
}

func (s *Service) parentFor(ctx context.Context, actor *models.User, parentID uint, op string) (*models.Asset, error) {
	if !models.CanCreateAsset(actor) {
		metrics.PermissionDenied.WithLabelValues(op).Inc()
		return nil, ErrPermissionDenied
	}
	parent, err := s.FindFolder(ctx, actor, parentID)
	if err != nil {
		return nil, err
	}
	if !canAddUnder(actor, parent) {
		metrics.PermissionDenied.WithLabelValues(op).Inc()
		return nil, ErrPermissionDenied
	}
	return parent, nil
}

// allocate inserts rec under the first free candidate of base. rec.Filename,
// Name and Title are filled from the winning candidate.
func (s *Service) allocate(ctx context.Context, rec *models.Asset, base string, splitExt bool) error {
	for candidate := range s.opts.Names.Candidates(base, splitExt) {
		taken, err := s.store.FilenameTaken(ctx, candidate)
		if err != nil {
			return err
		}
		if taken {
			metrics.NameCollisions.Inc()
			continue
		}

		rec.ID = 0
		rec.Filename = candidate
		rec.Name = path.Base(candidate)
		rec.Title = rec.Name
		err = s.store.Create(ctx, rec)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race to a concurrent insert of the same name.
			metrics.NameCollisions.Inc()
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create asset: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNameExhausted, base)
}

// CreateFolder creates a folder named after the basename of requestedName below
// parentID (0 for root). An empty name uses the default folder name; a taken
// name gets a numeric suffix.
func (s *Service) CreateFolder(ctx context.Context, actor *models.User, requestedName string, parentID uint) (*models.Asset, error) {
	parent, err := s.parentFor(ctx, actor, parentID, "create_folder")
	if err != nil {
		return nil, err
	}

	leaf := sanitizeLeaf(requestedName)
	if leaf == "" {
		leaf = s.opts.DefaultFolderName
	}
	if err := validateLeaf(leaf); err != nil {
		return nil, err
	}

	base := leaf
	if parent != nil {
		base = parent.Filename + "/" + leaf
	}

	folder := &models.Asset{Kind: models.KindFolder, ParentID: parentID, OwnerID: actor.ID}
	if err := s.allocate(ctx, folder, base, false); err != nil {
		return nil, err
	}

	metrics.FoldersCreated.Inc()
	logger.Info("folder created", "id", folder.ID, "filename", folder.Filename, "user_id", actor.ID)
	return folder, nil
}

// UploadInput describes an incoming file.
type UploadInput struct {
	Filename    string
	ContentType string
	Private     bool
}

// Upload stores r as a new file in folderID. The name follows the same
// unique allocation as folders, with the counter placed before the extension.
func (s *Service) Upload(ctx context.Context, actor *models.User, folderID uint, r io.Reader, in UploadInput) (*models.Asset, error) {
	parent, err := s.parentFor(ctx, actor, folderID, "upload")
	if err != nil {
		metrics.RecordUpload(false)
		return nil, err
	}

	leaf := sanitizeLeaf(in.Filename)
	if err := validateLeaf(leaf); err != nil {
		metrics.RecordUpload(false)
		return nil, err
	}

	saved, err := s.blobs.Save(ctx, r, storage.SaveOptions{
		Filename:    leaf,
		ContentType: in.ContentType,
		MaxSize:     s.opts.MaxUploadSize,
	})
	if err != nil {
		metrics.RecordUpload(false)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	base := leaf
	if parent != nil {
		base = parent.Filename + "/" + leaf
	}
	file := &models.Asset{
		Kind:        models.KindFile,
		ParentID:    folderID,
		OwnerID:     actor.ID,
		Private:     in.Private,
		FileSize:    saved.Size,
		MimeType:    in.ContentType,
		StoragePath: saved.Key,
		Hash:        saved.Hash,
	}
	if err := s.allocate(ctx, file, base, true); err != nil {
		if delErr := s.blobs.Delete(ctx, saved.Key); delErr != nil {
			logger.Warn("failed to remove orphaned upload", "key", saved.Key, "error", delErr)
		}
		metrics.RecordUpload(false)
		return nil, err
	}

	metrics.RecordUpload(true)
	logger.Info("upload stored", "id", file.ID, "filename", file.Filename, "size", file.FileSize, "user_id", actor.ID)
	return file, nil
}

// Find returns the asset with id when actor may view it.
func (s *Service) Find(ctx context.Context, actor *models.User, id uint) (*models.Asset, error) {
	asset, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !asset.CanView(actor) {
		return nil, ErrNotFound
	}
	return asset, nil
}

// Open returns a file and a reader over its content.
func (s *Service) Open(ctx context.Context, actor *models.User, id uint) (*models.Asset, io.ReadCloser, error) {
	file, err := s.Find(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if file.IsFolder() {
		return nil, nil, ErrNotFound
	}
	rc, err := s.blobs.Open(ctx, file.StoragePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return file, rc, nil
}

// Delete removes the asset and, for folders, everything below it. It returns
// the parent ID of the removed asset.
func (s *Service) Delete(ctx context.Context, actor *models.User, id uint) (uint, error) {
	asset, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if !asset.CanDelete(actor) {
		metrics.PermissionDenied.WithLabelValues("delete").Inc()
		return 0, ErrPermissionDenied
	}

	removed, err := s.store.DeleteTree(ctx, asset)
	if err != nil {
		return 0, err
	}
	s.removeBlobs(ctx, removed)

	logger.Info("assets deleted", "id", asset.ID, "filename", asset.Filename, "count", len(removed), "user_id", actor.ID)
	return asset.ParentID, nil
}

func (s *Service) removeBlobs(ctx context.Context, removed []models.Asset) {
	var keys []string
	for _, a := range removed {
		if !a.IsFolder() && a.StoragePath != "" {
			keys = append(keys, a.StoragePath)
		}
	}
	if err := storage.DeleteAll(ctx, s.blobs, keys); err != nil {
		// Records are gone already; leftover blobs are only wasted space.
		logger.Warn("failed to remove blobs of deleted assets", "error", err)
	}
}

// Outcome is the per-item result of a batch delete.
type Outcome string

const (
	OutcomeDeleted Outcome = "deleted"
	OutcomeDenied  Outcome = "denied"
	OutcomeMissing Outcome = "missing"
	OutcomeFailed  Outcome = "failed"
)

type BatchItem struct {
	ID      uint    `json:"id"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message,omitempty"`
}

type BatchResult struct {
	Items   []BatchItem `json:"items"`
	Deleted int         `json:"deleted"`
	Skipped int         `json:"skipped"`
}

// BatchDelete deletes each ID independently and reports every outcome. IDs
// removed earlier in the same batch as descendants are reported as missing.
func (s *Service) BatchDelete(ctx context.Context, actor *models.User, ids []uint) BatchResult {
	result := BatchResult{Items: make([]BatchItem, 0, len(ids))}
	for _, id := range ids {
		item := BatchItem{ID: id}
		_, err := s.Delete(ctx, actor, id)
		switch {
		case err == nil:
			item.Outcome = OutcomeDeleted
			result.Deleted++
		case errors.Is(err, ErrNotFound):
			item.Outcome = OutcomeMissing
			item.Message = "not found"
		case errors.Is(err, ErrPermissionDenied):
			item.Outcome = OutcomeDenied
			item.Message = "permission denied"
		default:
			item.Outcome = OutcomeFailed
			item.Message = "delete failed"
			logger.Error("batch delete item failed", "id", id, "error", err)
		}
		if item.Outcome != OutcomeDeleted {
			result.Skipped++
		}
		metrics.BatchDeleteItems.WithLabelValues(string(item.Outcome)).Inc()
		result.Items = append(result.Items, item)
	}
	return result
}

// TreeNode is a folder entry of the tree view.
type TreeNode struct {
	ID         uint   `json:"id"`
	Title      string `json:"title"`
	Filename   string `json:"filename"`
	ChildCount int    `json:"child_count"`
}

// Subtree returns the viewable child folders of parentID in natural order of
// their titles, each with its number of viewable child folders.
func (s *Service) Subtree(ctx context.Context, actor *models.User, parentID uint) ([]TreeNode, error) {
	if _, err := s.FindFolder(ctx, actor, parentID); err != nil {
		return nil, err
	}

	children, err := s.viewableFolders(ctx, actor, parentID)
	if err != nil {
		return nil, err
	}

	nodes := make([]TreeNode, 0, len(children))
	for _, child := range children {
		grand, err := s.viewableFolders(ctx, actor, child.ID)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, TreeNode{
			ID:         child.ID,
			Title:      child.DisplayTitle(),
			Filename:   child.Filename,
			ChildCount: len(grand),
		})
	}

	slices.SortStableFunc(nodes, func(a, b TreeNode) int {
		x, y := strings.ToLower(a.Title), strings.ToLower(b.Title)
		switch {
		case natural.Less(x, y):
			return -1
		case natural.Less(y, x):
			return 1
		default:
			return 0
		}
	})
	return nodes, nil
}

func (s *Service) viewableFolders(ctx context.Context, actor *models.User, parentID uint) ([]models.Asset, error) {
	folders, err := s.store.Children(ctx, parentID, true)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(folders, func(a models.Asset) bool { return !a.CanView(actor) }), nil
}
