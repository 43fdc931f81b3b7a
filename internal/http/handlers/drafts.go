package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/flow"
	"github.com/wolfman30/chefbook/internal/longterm"
	"github.com/wolfman30/chefbook/pkg/logging"
)

// DraftHandler serves the long-term booking configuration screens.
type DraftHandler struct {
	flows  *flow.Service
	logger *logging.Logger
}

// NewDraftHandler builds a DraftHandler.
func NewDraftHandler(flows *flow.Service, logger *logging.Logger) *DraftHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DraftHandler{flows: flows, logger: logger}
}

// Routes mounts the draft routes.
func (h *DraftHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{draftID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Get("/menus", h.Menus)
		r.Post("/calculate", h.Calculate)
		r.Route("/dates/{date}", func(r chi.Router) {
			r.Post("/toggle", h.ToggleDate)
			r.Put("/show-menu", h.SetShowMenu)
			r.Put("/start-time", h.SetStartTime)
			r.Get("/dishes", h.Dishes)
			r.Post("/menu/{menuID}/toggle", h.ToggleMenu)
			r.Post("/dishes/{dishID}/toggle", h.ToggleDish)
			r.Post("/selection/apply", h.ApplySelection)
			r.Post("/notes/open", h.OpenNotes)
			r.Put("/notes/{dishID}", h.SetNote)
			r.Post("/notes/save", h.SaveNotes)
			r.Post("/notes/cancel", h.CancelNotes)
		})
	})
}

type createDraftRequest struct {
	ChefID  int64            `json:"chefId"`
	Package longterm.Package `json:"package"`
}

func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	d, err := h.flows.CreateDraft(req.ChefID, req.Package)
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, d.View())
}

func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.flows.DeleteDraft(chi.URLParam(r, "draftID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *DraftHandler) Menus(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	menus, err := d.Menus(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"menus": menus})
}

func (h *DraftHandler) ToggleDate(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	view, err := d.ToggleDate(chi.URLParam(r, "date"))
	h.respondView(w, r, view, err)
}

type showMenuRequest struct {
	ShowMenu bool `json:"showMenu"`
}

func (h *DraftHandler) SetShowMenu(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req showMenuRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	view, err := d.SetShowMenu(chi.URLParam(r, "date"), req.ShowMenu)
	h.respondView(w, r, view, err)
}

type startTimeRequest struct {
	StartTime string `json:"startTime"`
}

func (h *DraftHandler) SetStartTime(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req startTimeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	view, err := d.SetStartTime(chi.URLParam(r, "date"), req.StartTime)
	h.respondView(w, r, view, err)
}

func (h *DraftHandler) Dishes(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	dishes, err := d.Dishes(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dishes": dishes})
}

func (h *DraftHandler) ToggleMenu(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	menuID, err := idParam(r, "menuID")
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	pick, dishes, err := d.ToggleMenu(r.Context(), chi.URLParam(r, "date"), menuID)
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pick": pick, "dishes": dishes})
}

func (h *DraftHandler) ToggleDish(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	dishID, err := idParam(r, "dishID")
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	pick, err := d.ToggleDish(chi.URLParam(r, "date"), dishID)
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pick": pick})
}

func (h *DraftHandler) ApplySelection(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	view, err := d.ApplySelection(r.Context(), chi.URLParam(r, "date"))
	h.respondView(w, r, view, err)
}

func (h *DraftHandler) OpenNotes(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	editor, err := d.OpenNotes(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, editor)
}

type noteRequest struct {
	Notes string `json:"notes"`
}

func (h *DraftHandler) SetNote(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	dishID, err := idParam(r, "dishID")
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	editor, err := d.SetNote(dishID, req.Notes)
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, editor)
}

func (h *DraftHandler) SaveNotes(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	view, err := d.SaveNotes()
	h.respondView(w, r, view, err)
}

func (h *DraftHandler) CancelNotes(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.CancelNotes())
}

type calculateRequest struct {
	GuestCount int    `json:"guestCount"`
	Address    string `json:"address"`
}

func (h *DraftHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req calculateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	priced, err := d.Calculate(r.Context(), req.GuestCount, req.Address)
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"priced": priced})
}

func (h *DraftHandler) draft(w http.ResponseWriter, r *http.Request) (*flow.Draft, bool) {
	d, err := h.flows.Draft(chi.URLParam(r, "draftID"))
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return nil, false
	}
	return d, true
}

// respondView writes the draft view on success. On failure the error is
// written; the draft itself is unchanged.
func (h *DraftHandler) respondView(w http.ResponseWriter, r *http.Request, view flow.DraftView, err error) {
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(name, "%q is not a valid id", raw)
	}
	return id, nil
}
