package assets

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/agjmills/assetadmin/internal/database/models"
)

// Stage transforms a record sequence. Stages never modify their input slice.
type Stage func([]models.Asset) []models.Asset

// Apply runs records through stages in order.
func Apply(records []models.Asset, stages ...Stage) []models.Asset {
	for _, stage := range stages {
		records = stage(records)
	}
	return records
}

// ListRequest is everything a listing depends on besides the record set.
type ListRequest struct {
	FolderID uint
	Search   SearchParams
	// DetailView skips every filter except read permission, so a record
	// addressed directly is found even when the remembered folder is stale.
	DetailView bool
}

// IsDetailView reports whether a request takes the unfiltered detail path:
// no current folder, no explicit ID query variable and the "field" sub-route.
func IsDetailView(folderID uint, queryIDPresent bool, action string) bool {
	return folderID == 0 && !queryIDPresent && action == "field"
}

// Composer builds the stage list for a listing.
type Composer struct {
	Categories Categories
	Location   *time.Location // day boundaries of the date filters
}

// Stages returns the ordered pipeline for actor and req.
func (c *Composer) Stages(actor *models.User, req ListRequest) []Stage {
	stages := []Stage{ViewableBy(actor)}
	if req.DetailView {
		return stages
	}

	p := req.Search
	if p.Name != "" {
		stages = append(stages, NameOrTitleContains(p.Name))
	}
	stages = append(stages, FoldersFirstByName())
	if p.IsEmpty() || p.CurrentFolderOnly {
		stages = append(stages, InFolder(req.FolderID))
	}
	if exts := c.Categories.Extensions(p.Category); len(exts) > 0 {
		stages = append(stages, ExtensionIn(exts))
	}
	if p.CreatedFrom != "" {
		stages = append(stages, CreatedOnOrAfter(p.CreatedFrom, c.location()))
	}
	if p.CreatedTo != "" {
		stages = append(stages, CreatedOnOrBefore(p.CreatedTo, c.location()))
	}
	return stages
}

// Compose runs the pipeline for actor and req over records.
func (c *Composer) Compose(records []models.Asset, actor *models.User, req ListRequest) []models.Asset {
	return Apply(records, c.Stages(actor, req)...)
}

func (c *Composer) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func filter(keep func(*models.Asset) bool) Stage {
	return func(in []models.Asset) []models.Asset {
		out := make([]models.Asset, 0, len(in))
		for i := range in {
			if keep(&in[i]) {
				out = append(out, in[i])
			}
		}
		return out
	}
}

func ViewableBy(actor *models.User) Stage {
	return filter(func(a *models.Asset) bool { return a.CanView(actor) })
}

// NameOrTitleContains keeps records whose name or title contains needle, ignoring case.
func NameOrTitleContains(needle string) Stage {
	needle = strings.ToLower(needle)
	return filter(func(a *models.Asset) bool {
		return strings.Contains(strings.ToLower(a.Name), needle) ||
			strings.Contains(strings.ToLower(a.Title), needle)
	})
}

// FoldersFirstByName sorts folders before files, then by name ignoring case.
// Equal names fall back to ID so the order is total.
func FoldersFirstByName() Stage {
	return func(in []models.Asset) []models.Asset {
		out := slices.Clone(in)
		slices.SortFunc(out, func(a, b models.Asset) int {
			if a.IsFolder() != b.IsFolder() {
				if a.IsFolder() {
					return -1
				}
				return 1
			}
			return cmp.Or(
				strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
				cmp.Compare(a.ID, b.ID),
			)
		})
		return out
	}
}

func InFolder(folderID uint) Stage {
	return filter(func(a *models.Asset) bool { return a.ParentID == folderID })
}

// ExtensionIn keeps files whose extension is one of exts. The whole lowercased
// extension is compared, not a substring of the name, so "jpg-notes.txt" is
// not an image. Folders have no extension and never match, even when their
// name ends in one (a folder named "old.zip" is not an archive).
func ExtensionIn(exts []string) Stage {
	return filter(func(a *models.Asset) bool {
		return slices.Contains(exts, a.Extension())
	})
}

// CreatedOnOrAfter keeps records created at or after the start of day.
// A malformed date keeps nothing.
func CreatedOnOrAfter(day string, loc *time.Location) Stage {
	start, ok := parseDay(day, loc)
	if !ok {
		return dropAll
	}
	return filter(func(a *models.Asset) bool { return !a.CreatedAt.Before(start) })
}

// CreatedOnOrBefore keeps records created up to the last instant of day.
// A malformed date keeps nothing.
func CreatedOnOrBefore(day string, loc *time.Location) Stage {
	start, ok := parseDay(day, loc)
	if !ok {
		return dropAll
	}
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return filter(func(a *models.Asset) bool { return !a.CreatedAt.After(end) })
}

func dropAll([]models.Asset) []models.Asset { return []models.Asset{} }

// dayLayouts are tried in order. The second matches the grid's date format.
var dayLayouts = []string{"2006-01-02", "02/01/2006", "2006/01/02"}

func parseDay(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dayLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
