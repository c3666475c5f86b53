package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/agjmills/assetadmin/internal/assets"
	"github.com/agjmills/assetadmin/internal/auth"
	"github.com/agjmills/assetadmin/internal/config"
	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/agjmills/assetadmin/internal/flash"
	"github.com/agjmills/assetadmin/internal/logger"
	"github.com/agjmills/assetadmin/internal/storage"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is allowed on top of MaxUploadSize for boundaries and part headers.
const multipartOverhead = 1 << 20

// AssetHandler serves the file manager screens and its JSON API.
type AssetHandler struct {
	svc            *assets.Service
	cfg            *config.Config
	sessionManager *scs.SessionManager
}

func NewAssetHandler(svc *assets.Service, cfg *config.Config, sessionManager *scs.SessionManager) *AssetHandler {
	return &AssetHandler{
		svc:            svc,
		cfg:            cfg,
		sessionManager: sessionManager,
	}
}

// Crumb is one breadcrumb entry. An empty URL marks the current page.
type Crumb struct {
	Title string
	URL   string
}

func showURL(id uint) string {
	return "/admin/assets/show/" + strconv.FormatUint(uint64(id), 10)
}

// selection resolves the current folder for r from the query, the URL path
// and the session, without touching the session.
func (h *AssetHandler) selection(r *http.Request) assets.Selection {
	return assets.ResolveSelection(r.URL.Query().Get("ID"), chi.URLParam(r, "id"), h.sessionManager.GetInt(r.Context(), assets.SessionKey))
}

func (h *AssetHandler) forget(r *http.Request) {
	h.sessionManager.Remove(r.Context(), assets.SessionKey)
}

// currentFolder resolves the selection to a folder record (nil for root) and
// keeps the session in step: a found explicit folder is remembered, an
// explicit root selection forgets it. A remembered folder that no longer
// exists or is no longer visible falls back to root; an explicitly requested
// one is reported as not found and leaves the session alone.
func (h *AssetHandler) currentFolder(r *http.Request) (assets.Selection, *models.Asset, error) {
	sel := h.selection(r)
	folder, err := h.svc.FindFolder(r.Context(), auth.GetUser(r), sel.FolderID)
	switch {
	case errors.Is(err, assets.ErrNotFound) && sel.Source == assets.SourceSession:
		logger.Debug("remembered folder is gone, showing root", "folder_id", sel.FolderID)
		h.forget(r)
		return assets.Selection{Source: assets.SourceRoot}, nil, nil
	case err != nil:
		return sel, nil, err
	case sel.Remember() && sel.Source != assets.SourceSession:
		h.sessionManager.Put(r.Context(), assets.SessionKey, int(sel.FolderID))
	case sel.Explicit() && !sel.Remember():
		h.forget(r)
	}
	return sel, folder, nil
}

// canAddHere reports whether actor may create folders or upload into folder (nil = root).
func canAddHere(actor *models.User, folder *models.Asset) bool {
	if !models.CanCreateAsset(actor) {
		return false
	}
	return folder == nil || folder.CanAddChildren(actor)
}

// breadcrumbs builds the trail for folder. A search replaces the folder path
// with a single "Search Results" crumb. extra entries are appended as is.
func (h *AssetHandler) breadcrumbs(r *http.Request, folder *models.Asset, search assets.SearchParams, extra ...Crumb) ([]Crumb, error) {
	crumbs := []Crumb{{Title: "Files", URL: showURL(0)}}

	var folderID uint
	if folder != nil {
		folderID = folder.ID
	}

	if !search.IsEmpty() {
		crumbs = append(crumbs, Crumb{Title: "Search Results", URL: showURL(folderID) + "?" + search.Values().Encode()})
	} else if folder != nil {
		chain, err := h.svc.Ancestors(r.Context(), auth.GetUser(r), folder.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range chain {
			crumbs = append(crumbs, Crumb{Title: a.DisplayTitle(), URL: showURL(a.ID)})
		}
	}

	crumbs = append(crumbs, extra...)
	if len(crumbs) > 1 {
		crumbs[len(crumbs)-1].URL = ""
	}
	return crumbs, nil
}

// Index renders the listing of the current folder, filtered by any search
// parameters in the query string.
func (h *AssetHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.GetUser(r)

	sel, folder, err := h.currentFolder(r)
	if err != nil {
		fail(w, r, err, "")
		return
	}

	query := r.URL.Query()
	search := assets.ParseSearchParams(query)
	records, err := h.svc.List(ctx, user, assets.ListRequest{FolderID: sel.FolderID, Search: search})
	if err != nil {
		fail(w, r, err, "")
		return
	}

	crumbs, err := h.breadcrumbs(r, folder, search)
	if err != nil {
		fail(w, r, err, "")
		return
	}

	title := "Files"
	if folder != nil {
		title = folder.DisplayTitle()
	}

	gridQuery := search.Values()
	data := pageData(w, r, title)
	data["FolderID"] = sel.FolderID
	data["Folder"] = folder
	data["Search"] = search
	data["Categories"] = h.svc.Categories().Keys()
	data["Grid"] = newGrid(records, user, pageNumber(query), h.cfg.PageLength, sel.FolderID, gridQuery)
	data["Breadcrumbs"] = crumbs
	data["CanAddChildren"] = canAddHere(user, folder)

	if err := render(w, http.StatusOK, "assets.html", data); err != nil {
		logger.Error("failed to render asset listing", "error", err)
		fail(w, r, err, "")
	}
}

// listItem is the JSON shape of a composed listing entry.
type listItem struct {
	models.Asset
	Extension string `json:"extension,omitempty"`
	CanDelete bool   `json:"can_delete"`
}

type listResponse struct {
	FolderID uint                `json:"folder_id"`
	Search   assets.SearchParams `json:"search"`
	Page     int                 `json:"page"`
	Pages    int                 `json:"pages"`
	Total    int                 `json:"total"`
	Items    []listItem          `json:"items"`
}

// ListJSON returns one page of the composed listing as JSON.
func (h *AssetHandler) ListJSON(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	sel, _, err := h.currentFolder(r)
	if err != nil {
		failJSON(w, r, err)
		return
	}

	query := r.URL.Query()
	search := assets.ParseSearchParams(query)
	records, err := h.svc.List(r.Context(), user, assets.ListRequest{FolderID: sel.FolderID, Search: search})
	if err != nil {
		failJSON(w, r, err)
		return
	}

	grid := newGrid(records, user, pageNumber(query), h.cfg.PageLength, sel.FolderID, search.Values())
	resp := listResponse{
		FolderID: sel.FolderID,
		Search:   search,
		Page:     grid.Page,
		Pages:    grid.Pages,
		Total:    grid.Total,
		Items:    make([]listItem, 0, len(grid.Rows)),
	}
	for i := range grid.Rows {
		a := records[grid.offset+i]
		resp.Items = append(resp.Items, listItem{Asset: a, Extension: a.Extension(), CanDelete: grid.Rows[i].CanDelete})
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddFolderForm renders the add-folder form for ?ParentID=, defaulting to the
// current folder.
func (h *AssetHandler) AddFolderForm(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	var parent *models.Asset
	var err error
	if raw := r.URL.Query().Get("ParentID"); raw != "" {
		id, perr := strconv.ParseUint(raw, 10, 0)
		if perr != nil {
			http.Error(w, "Invalid parent ID", http.StatusBadRequest)
			return
		}
		parent, err = h.svc.FindFolder(r.Context(), user, uint(id))
	} else {
		_, parent, err = h.currentFolder(r)
	}
	if err != nil {
		fail(w, r, err, "")
		return
	}
	if !canAddHere(user, parent) {
		fail(w, r, assets.ErrPermissionDenied, "")
		return
	}

	crumbs, err := h.breadcrumbs(r, parent, assets.SearchParams{}, Crumb{Title: "Add folder"})
	if err != nil {
		fail(w, r, err, "")
		return
	}

	var parentID uint
	if parent != nil {
		parentID = parent.ID
	}
	data := pageData(w, r, "Add folder")
	data["ParentID"] = parentID
	data["DefaultName"] = h.svc.DefaultFolderName()
	data["Breadcrumbs"] = crumbs
	if err := render(w, http.StatusOK, "addfolder.html", data); err != nil {
		logger.Error("failed to render add folder form", "error", err)
		fail(w, r, err, "")
	}
}

type addFolderRequest struct {
	Name     string `json:"name"`
	ParentID uint   `json:"parent_id"`
}

// AddFolder creates a folder and redirects into it.
func (h *AssetHandler) AddFolder(w http.ResponseWriter, r *http.Request) {
	var req addFolderRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request")
			return
		}
	} else {
		req.Name = r.FormValue("Name")
		if raw := r.FormValue("ParentID"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 0)
			if err != nil {
				http.Error(w, "Invalid parent ID", http.StatusBadRequest)
				return
			}
			req.ParentID = uint(id)
		}
	}

	back := "/admin/assets/addfolder?ParentID=" + strconv.FormatUint(uint64(req.ParentID), 10)
	folder, err := h.svc.CreateFolder(r.Context(), auth.GetUser(r), req.Name, req.ParentID)
	if err != nil {
		fail(w, r, err, back)
		return
	}

	if isJSONRequest(r) {
		writeJSON(w, http.StatusCreated, folder)
		return
	}
	if req.Name != "" && folder.Name != strings.TrimSpace(req.Name) {
		flash.Info(w, fmt.Sprintf("Created folder %s. The requested name was not available.", folder.DisplayTitle()))
	} else {
		flash.Success(w, fmt.Sprintf("Created folder %s.", folder.DisplayTitle()))
	}
	http.Redirect(w, r, showURL(folder.ID), http.StatusSeeOther)
}

// Delete removes one asset (form field ID) and returns to its parent folder.
func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.FormValue("ID"), 10, 0)
	if err != nil || id == 0 {
		if isJSONRequest(r) {
			writeJSONError(w, http.StatusBadRequest, "Invalid ID")
			return
		}
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	parentID, err := h.svc.Delete(r.Context(), auth.GetUser(r), uint(id))
	if err != nil {
		fail(w, r, err, "")
		return
	}
	h.forget(r)

	if isJSONRequest(r) {
		writeJSON(w, http.StatusOK, map[string]uint{"parent_id": parentID})
		return
	}
	flash.Success(w, "Deleted.")
	http.Redirect(w, r, showURL(parentID), http.StatusSeeOther)
}

type batchDeleteRequest struct {
	IDs []uint `json:"ids"`
}

// BatchDelete deletes the posted IDs and reports a per-item outcome.
func (h *AssetHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "No IDs given")
		return
	}

	result := h.svc.BatchDelete(r.Context(), auth.GetUser(r), req.IDs)
	if result.Deleted > 0 {
		h.forget(r)
	}
	writeJSON(w, http.StatusOK, result)
}

// Subtree returns the child folders of ?ID= for the tree view.
func (h *AssetHandler) Subtree(w http.ResponseWriter, r *http.Request) {
	var parentID uint
	if raw := r.URL.Query().Get("ID"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 0)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid ID")
			return
		}
		parentID = uint(id)
	}

	nodes, err := h.svc.Subtree(r.Context(), auth.GetUser(r), parentID)
	if err != nil {
		failJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// Detail renders a single record addressed through the field sub-route. The
// record must be part of the composed listing for the current request, so
// the detail view honours the same visibility as the grid.
func (h *AssetHandler) Detail(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseUint(chi.URLParam(r, "itemID"), 10, 0)
	if err != nil {
		notFound(w, r)
		return
	}

	user := auth.GetUser(r)
	sel, _, err := h.currentFolder(r)
	if err != nil {
		fail(w, r, err, "")
		return
	}

	req := assets.ListRequest{
		FolderID:   sel.FolderID,
		Search:     assets.ParseSearchParams(r.URL.Query()),
		DetailView: assets.IsDetailView(sel.FolderID, r.URL.Query().Has("ID"), "field"),
	}
	records, err := h.svc.List(r.Context(), user, req)
	if err != nil {
		fail(w, r, err, "")
		return
	}

	var found *models.Asset
	for i := range records {
		if uint64(records[i].ID) == itemID {
			found = &records[i]
			break
		}
	}
	if found == nil {
		notFound(w, r)
		return
	}

	parent, err := h.svc.FindFolder(r.Context(), user, found.ParentID)
	if err != nil && !errors.Is(err, assets.ErrNotFound) {
		fail(w, r, err, "")
		return
	}
	crumbs, err := h.breadcrumbs(r, parent, assets.SearchParams{}, Crumb{Title: found.DisplayTitle()})
	if err != nil {
		fail(w, r, err, "")
		return
	}

	if isJSONRequest(r) {
		writeJSON(w, http.StatusOK, found)
		return
	}
	data := pageData(w, r, found.DisplayTitle())
	data["Asset"] = found
	data["Breadcrumbs"] = crumbs
	if err := render(w, http.StatusOK, "asset_detail.html", data); err != nil {
		logger.Error("failed to render asset detail", "error", err)
		fail(w, r, err, "")
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	fail(w, r, assets.ErrNotFound, "")
}

// Download streams the content of a file.
func (h *AssetHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 0)
	if err != nil {
		notFound(w, r)
		return
	}

	file, reader, err := h.svc.Open(r.Context(), auth.GetUser(r), uint(id))
	if err != nil {
		fail(w, r, err, "")
		return
	}
	defer reader.Close()

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(file.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(file.FileSize, 10))

	if _, err := io.Copy(w, reader); err != nil {
		logger.Warn("error streaming file", "id", file.ID, "key", file.StoragePath, "error", err)
	}
}

// contentDisposition builds an attachment header with an RFC 2231 encoded
// name when the plain form would not survive.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment; filename*=UTF-8''" + url.PathEscape(name)
}

// Upload streams the "file" part of a multipart body into the current folder
// (?ID=, else the remembered folder).
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	sel, _, err := h.currentFolder(r)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	back := showURL(sel.FolderID)

	if h.cfg.MaxUploadSize > 0 {
		if r.ContentLength > h.cfg.MaxUploadSize+multipartOverhead {
			fail(w, r, fmt.Errorf("content length %d: %w", r.ContentLength, storage.ErrFileTooLarge), back)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "Expected a multipart upload", http.StatusBadRequest)
		return
	}

	var (
		file      *models.Asset
		requested string
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				fail(w, r, err, back)
				return
			}
			http.Error(w, "Failed to parse multipart form", http.StatusBadRequest)
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		requested = part.FileName()
		file, err = h.svc.Upload(r.Context(), user, sel.FolderID, part, assets.UploadInput{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Private:     r.URL.Query().Get("private") == "1",
		})
		part.Close()
		if err != nil {
			fail(w, r, err, back)
			return
		}
		break
	}

	if file == nil {
		if isJSONRequest(r) {
			writeJSONError(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		flash.Error(w, "No file uploaded.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	if isJSONRequest(r) {
		writeJSON(w, http.StatusCreated, file)
		return
	}
	if file.Name != requested {
		flash.Warning(w, fmt.Sprintf("Uploaded %s as %s.", requested, file.Name))
	} else {
		flash.Success(w, fmt.Sprintf("Uploaded %s.", file.Name))
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
