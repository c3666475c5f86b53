package assets

import (
	"testing"
	"time"

	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/stretchr/testify/assert"
)

// scenarioRecords: root, folder Photos (5), file cat.jpg in Photos, plus a few
// records at root to exercise ordering.
func scenarioRecords() []models.Asset {
	return []models.Asset{
		{ID: 9, Kind: models.KindFile, ParentID: 0, Name: "readme.txt", Title: "Read me", CreatedAt: day("2024-03-10 09:00:00")},
		{ID: 6, Kind: models.KindFile, ParentID: 5, Name: "cat.jpg", Title: "Cat", CreatedAt: day("2024-03-01 12:00:00")},
		{ID: 5, Kind: models.KindFolder, ParentID: 0, Name: "Photos", Title: "Photos", CreatedAt: day("2024-02-01 08:00:00")},
		{ID: 7, Kind: models.KindFolder, ParentID: 0, Name: "archive", Title: "Archive", CreatedAt: day("2024-02-02 08:00:00")},
		{ID: 8, Kind: models.KindFile, ParentID: 0, Name: "Backup.zip", Title: "Backup", CreatedAt: day("2024-03-05 23:59:59")},
		{ID: 10, Kind: models.KindFile, ParentID: 5, Name: "dog.png", Title: "A good dog", CreatedAt: day("2024-03-06 00:00:00")},
		{ID: 11, Kind: models.KindFile, ParentID: 5, Name: "secret.jpg", Title: "Secret", OwnerID: 99, Private: true, CreatedAt: day("2024-03-06 00:00:00")},
	}
}

func testComposer() *Composer {
	return &Composer{Categories: DefaultCategories(), Location: time.UTC}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name   string
		folder uint
		search SearchParams
		want   []string
	}{
		{
			name:   "no params lists root children folders first",
			folder: 0,
			want:   []string{"archive", "Photos", "Backup.zip", "readme.txt"},
		},
		{
			name:   "no params lists folder children",
			folder: 5,
			want:   []string{"cat.jpg", "dog.png"},
		},
		{
			name:   "name search spans all folders",
			folder: 0,
			search: SearchParams{Name: "cat"},
			want:   []string{"cat.jpg"},
		},
		{
			name:   "name search matches title case-insensitively",
			folder: 0,
			search: SearchParams{Name: "GOOD"},
			want:   []string{"dog.png"},
		},
		{
			name:   "current folder only limits search",
			folder: 0,
			search: SearchParams{Name: "a", CurrentFolderOnly: true},
			want:   []string{"archive", "Backup.zip", "readme.txt"},
		},
		{
			name:   "category image",
			folder: 0,
			search: SearchParams{Category: "image"},
			want:   []string{"cat.jpg", "dog.png"},
		},
		{
			name:   "unknown category filters nothing",
			folder: 0,
			search: SearchParams{Category: "holograms"},
			want:   []string{"archive", "Photos", "Backup.zip", "cat.jpg", "dog.png", "readme.txt"},
		},
		{
			name:   "created from is inclusive of the whole day",
			folder: 0,
			search: SearchParams{CreatedFrom: "2024-03-06"},
			want:   []string{"dog.png", "readme.txt"},
		},
		{
			name:   "created to is inclusive of the last second",
			folder: 0,
			search: SearchParams{CreatedTo: "2024-03-05"},
			want:   []string{"archive", "Photos", "Backup.zip", "cat.jpg"},
		},
		{
			name:   "date range in grid format",
			folder: 0,
			search: SearchParams{CreatedFrom: "01/03/2024", CreatedTo: "05/03/2024"},
			want:   []string{"Backup.zip", "cat.jpg"},
		},
		{
			name:   "from after to is empty",
			folder: 0,
			search: SearchParams{CreatedFrom: "2024-03-10", CreatedTo: "2024-03-01"},
			want:   []string{},
		},
		{
			name:   "malformed date is empty",
			folder: 0,
			search: SearchParams{CreatedFrom: "yesterday"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testComposer().Compose(scenarioRecords(), viewerUser, ListRequest{FolderID: tt.folder, Search: tt.search})
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestCompose_NameFilterProperty(t *testing.T) {
	needle := "A"
	got := testComposer().Compose(scenarioRecords(), adminUser, ListRequest{Search: SearchParams{Name: needle}})
	assert.NotEmpty(t, got)
	for _, r := range got {
		assert.True(t, containsFold(r.Name, needle) || containsFold(r.Title, needle),
			"record %q / %q does not contain %q", r.Name, r.Title, needle)
	}
}

func TestCompose_Idempotent(t *testing.T) {
	c := testComposer()
	req := ListRequest{Search: SearchParams{Category: "image"}}
	first := c.Compose(scenarioRecords(), adminUser, req)
	second := c.Compose(scenarioRecords(), adminUser, req)
	assert.Equal(t, first, second)
}

func TestCompose_DoesNotModifyInput(t *testing.T) {
	records := scenarioRecords()
	before := names(records)
	testComposer().Compose(records, adminUser, ListRequest{})
	assert.Equal(t, before, names(records))
}

func TestCompose_Permissions(t *testing.T) {
	c := testComposer()

	viewer := c.Compose(scenarioRecords(), viewerUser, ListRequest{FolderID: 5})
	assert.NotContains(t, names(viewer), "secret.jpg")

	owner := c.Compose(scenarioRecords(), newUser(99, false, models.PermAccessAssets), ListRequest{FolderID: 5})
	assert.Contains(t, names(owner), "secret.jpg")

	none := c.Compose(scenarioRecords(), newUser(50, false), ListRequest{})
	assert.Empty(t, none)
}

func TestCompose_DetailViewBypass(t *testing.T) {
	got := testComposer().Compose(scenarioRecords(), viewerUser, ListRequest{
		Search:     SearchParams{Name: "nothing matches"},
		DetailView: true,
	})
	// Every viewable record, in store order, nothing filtered.
	assert.Equal(t, []string{"readme.txt", "cat.jpg", "Photos", "archive", "Backup.zip", "dog.png"}, names(got))
}

func TestIsDetailView(t *testing.T) {
	tests := []struct {
		name       string
		folder     uint
		queryID    bool
		action     string
		wantBypass bool
	}{
		{"field route at root", 0, false, "field", true},
		{"folder selected", 5, false, "field", false},
		{"explicit query id", 0, true, "field", false},
		{"other route", 0, false, "show", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantBypass, IsDetailView(tt.folder, tt.queryID, tt.action))
		})
	}
}

func TestExtensionIn(t *testing.T) {
	records := []models.Asset{
		{ID: 1, Kind: models.KindFile, Name: "cat.JPG"},
		{ID: 2, Kind: models.KindFile, Name: "jpg-notes.txt"},
		{ID: 3, Kind: models.KindFolder, Name: "holiday.jpg"},
		{ID: 4, Kind: models.KindFile, Name: "photo.jpeg"},
		{ID: 5, Kind: models.KindFile, Name: "noext"},
	}

	got := ExtensionIn([]string{"jpg", "jpeg"})(records)

	ids := make([]uint, len(got))
	for i, a := range got {
		ids[i] = a.ID
	}
	assert.Equal(t, []uint{1, 4}, ids)
}

func TestCreatedOnOrBefore_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	records := []models.Asset{
		// 22:30 UTC on the 5th is 00:30 on the 6th in UTC+2.
		{ID: 1, Name: "late", CreatedAt: day("2024-03-05 22:30:00")},
	}
	assert.Empty(t, CreatedOnOrBefore("2024-03-05", loc)(records))
	assert.Len(t, CreatedOnOrBefore("2024-03-05", time.UTC)(records), 1)
}

func containsFold(s, sub string) bool {
	return len(NameOrTitleContains(sub)([]models.Asset{{Name: s}})) == 1
}
