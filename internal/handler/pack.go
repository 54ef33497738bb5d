package handler

import (
	"net/http"
	"strconv"

	"github.com/cmertens/flashpack/internal/domain"
	"github.com/cmertens/flashpack/internal/service"
)

// PackHandler handles pack-related HTTP requests.
type PackHandler struct {
	packs *service.PackService
}

// NewPackHandler creates a new PackHandler.
func NewPackHandler(packs *service.PackService) *PackHandler {
	return &PackHandler{packs: packs}
}

// HandleListMine returns the caller's packs in insertion order.
// GET /api/packs/mine
func (h *PackHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	packs, err := h.packs.ListOwned(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, "list owned packs", err)
		return
	}
	if packs == nil {
		packs = []domain.Pack{}
	}
	writeJSON(w, http.StatusOK, packs)
}

// HandleListSaved returns the packs the caller has saved, each enriched
// with its owner's email.
// GET /api/packs/saved
func (h *PackHandler) HandleListSaved(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	saved, err := h.packs.ListSaved(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, "list saved packs", err)
		return
	}
	if saved == nil {
		saved = []domain.SavedPack{}
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleCreate creates a new empty pack owned by the caller.
// POST /api/packs
func (h *PackHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Visibility  string `json:"visibility"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	pack, err := h.packs.Create(r.Context(), user.ID, req.Title, req.Description, req.Visibility)
	if err != nil {
		writeDomainError(w, "create pack", err)
		return
	}
	writeJSON(w, http.StatusCreated, pack)
}

// HandleGet returns a single pack, subject to access control.
// GET /api/packs/{packID}
func (h *PackHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	packID, ok := pathID(w, r, "packID")
	if !ok {
		return
	}

	pack, err := h.packs.Get(r.Context(), user.ID, packID)
	if err != nil {
		writeDomainError(w, "get pack", err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

// HandleUpdateMeta updates a pack's title and/or description.
// PATCH /api/packs/{packID}
func (h *PackHandler) HandleUpdateMeta(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	packID, ok := pathID(w, r, "packID")
	if !ok {
		return
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	pack, err := h.packs.UpdateMeta(r.Context(), user.ID, packID, req.Title, req.Description)
	if err != nil {
		writeDomainError(w, "update pack meta", err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

// HandleReplaceCards replaces a pack's card list wholesale.
// PATCH /api/packs/{packID}/cards
func (h *PackHandler) HandleReplaceCards(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	packID, ok := pathID(w, r, "packID")
	if !ok {
		return
	}

	var req struct {
		Cards []domain.Card `json:"cards"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	pack, err := h.packs.ReplaceCards(r.Context(), user.ID, packID, req.Cards)
	if err != nil {
		writeDomainError(w, "replace cards", err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

// HandleChangeVisibility switches a pack between PUBLIC and PRIVATE.
// PATCH /api/packs/{packID}/visibility
func (h *PackHandler) HandleChangeVisibility(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	packID, ok := pathID(w, r, "packID")
	if !ok {
		return
	}

	var req struct {
		Visibility string `json:"visibility"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	pack, err := h.packs.ChangeVisibility(r.Context(), user.ID, packID, req.Visibility)
	if err != nil {
		writeDomainError(w, "change visibility", err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

// HandleSave subscribes the caller to a public pack.
// POST /api/packs/{packID}/save
func (h *PackHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	packID, ok := pathID(w, r, "packID")
	if !ok {
		return
	}

	if err := h.packs.Save(r.Context(), user.ID, packID); err != nil {
		writeDomainError(w, "save pack", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Pack saved"})
}

// HandleUnsave removes the caller's subscription. Idempotent.
// DELETE /api/packs/{packID}/save
func (h *PackHandler) HandleUnsave(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	packID, ok := pathID(w, r, "packID")
	if !ok {
		return
	}

	if err := h.packs.Unsave(r.Context(), user.ID, packID); err != nil {
		writeDomainError(w, "unsave pack", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pack unsaved"})
}

// HandleDelete destroys a pack and all references to it.
// DELETE /api/packs/{packID}
func (h *PackHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	packID, ok := pathID(w, r, "packID")
	if !ok {
		return
	}

	if err := h.packs.Delete(r.Context(), user.ID, packID); err != nil {
		writeDomainError(w, "delete pack", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pack deleted"})
}

// pathID parses an int64 path value, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id.")
		return 0, false
	}
	return id, true
}
