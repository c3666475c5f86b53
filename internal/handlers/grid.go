package handlers

import (
	"net/url"
	"strconv"

	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/agjmills/assetadmin/internal/templateutil"
)

// Column is one display column of the listing grid.
type Column struct {
	Name   string
	Label  string
	Format func(*models.Asset) string
}

// displayColumns are the listing columns: title, creation time, size.
var displayColumns = []Column{
	{Name: "Title", Label: "Title", Format: func(a *models.Asset) string { return a.DisplayTitle() }},
	{Name: "Created", Label: "Created", Format: func(a *models.Asset) string { return templateutil.FormatDate(a.CreatedAt) }},
	{Name: "Size", Label: "Size", Format: func(a *models.Asset) string {
		if a.IsFolder() {
			return ""
		}
		return templateutil.FormatBytes(a.FileSize)
	}},
}

type Row struct {
	ID        uint
	Filename  string
	IsFolder  bool
	CanDelete bool
	Link      string
	Cells     []string
}

// Grid is one page of a composed listing, ready for the template.
type Grid struct {
	Columns []Column
	Rows    []Row
	Page    int
	Pages   int
	Total   int

	offset   int
	folderID uint
	query    url.Values
}

// newGrid paginates records listed for folderID with the search in query.
// page is clamped into [1, Pages]; an empty listing has a single empty page.
func newGrid(records []models.Asset, actor *models.User, page, pageLength int, folderID uint, query url.Values) *Grid {
	if pageLength < 1 {
		pageLength = 1
	}
	total := len(records)
	pages := max(1, (total+pageLength-1)/pageLength)
	page = min(max(page, 1), pages)

	start := (page - 1) * pageLength
	end := min(start+pageLength, total)

	g := &Grid{
		Columns: displayColumns,
		Rows:    make([]Row, 0, end-start),
		Page:    page,
		Pages:   pages,
		Total:   total,
		offset:   start,
		folderID: folderID,
		query:    query,
	}
	for i := start; i < end; i++ {
		a := &records[i]
		row := Row{
			ID:        a.ID,
			Filename:  a.Filename,
			IsFolder:  a.IsFolder(),
			CanDelete: a.CanDelete(actor),
			Link:      g.link(a),
			Cells:     make([]string, len(displayColumns)),
		}
		for j, col := range displayColumns {
			row.Cells[j] = col.Format(a)
		}
		g.Rows = append(g.Rows, row)
	}
	return g
}

func (g *Grid) cloneQuery() url.Values {
	q := url.Values{}
	for k, v := range g.query {
		q[k] = v
	}
	return q
}

// PageURL links to page n of the same listing, keeping the search query.
func (g *Grid) PageURL(n int) string {
	q := g.cloneQuery()
	q.Set("page", strconv.Itoa(n))
	return showURL(g.folderID) + "?" + q.Encode()
}

// link opens folders in the listing and files in the detail view. File links
// carry the folder and search of this grid so the detail view composes the
// same listing the row came from.
func (g *Grid) link(a *models.Asset) string {
	if a.IsFolder() {
		return showURL(a.ID)
	}
	q := g.cloneQuery()
	q.Set("ID", strconv.FormatUint(uint64(g.folderID), 10))
	return "/admin/assets/field/File/item/" + strconv.FormatUint(uint64(a.ID), 10) + "?" + q.Encode()
}

// pageNumber reads ?page=N, defaulting to 1.
func pageNumber(query url.Values) int {
	n, err := strconv.Atoi(query.Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
