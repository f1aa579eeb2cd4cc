package api

import (
	"net/http"

	"go.uber.org/zap"
)

// HandleCreateUserDetails handles POST requests attaching details to a
// user. The referenced user must exist.
func (h *Handler) HandleCreateUserDetails(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeBody(w, r, &body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	details, err := h.catalog.UserDetails.New(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	owner, err := details.Fetch(r.Context(), "user")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if owner == nil {
		WriteJSONError(w, http.StatusUnprocessableEntity, "referenced user does not exist")
		return
	}
	if err := details.Save(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("user details created",
		zap.String("id", details.ID().Hex()),
		zap.String("user", owner.ID().Hex()))
	writeJSON(w, http.StatusCreated, details.ToMap())
}

// HandleGetUserDetails handles GET requests for user details. With
// ?expand=user the referenced user is embedded in the response.
func (h *Handler) HandleGetUserDetails(w http.ResponseWriter, r *http.Request) {
	if !validID(w, r) {
		return
	}
	details, err := h.catalog.UserDetails.FindOne(r.Context(), byID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if details == nil {
		WriteJSONError(w, http.StatusNotFound, "user details not found")
		return
	}

	out := details.ToMap()
	if r.URL.Query().Get("expand") == "user" {
		owner, err := details.Fetch(r.Context(), "user")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if owner != nil {
			out["user"] = userView(owner)
		}
	}
	writeJSON(w, http.StatusOK, out)
}
