package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleCreateItem handles POST requests creating an item of the kind named
// in the path, such as book or electronics
func (h *Handler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	model, ok := h.catalog.ItemModel(kind)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "unknown item kind "+kind)
		return
	}

	var body map[string]interface{}
	if err := decodeBody(w, r, &body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := model.InsertOne(r.Context(), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("item created", zap.String("kind", kind), zap.String("id", item.ID().Hex()))
	writeJSON(w, http.StatusCreated, itemView(item.Model().Name(), item.ToMap()))
}

// HandleListItems handles GET requests listing items. Without a kind every
// item kind is listed.
func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	model := h.catalog.Item
	if kind, ok := mux.Vars(r)["kind"]; ok {
		if model, ok = h.catalog.ItemModel(kind); !ok {
			WriteJSONError(w, http.StatusNotFound, "unknown item kind "+kind)
			return
		}
	}

	filter, opts, err := parseListQuery(model, r.URL.Query())
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := model.FindMany(r.Context(), filter, opts...)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, itemView(item.Model().Name(), item.ToMap()))
	}
	writeJSON(w, http.StatusOK, out)
}

func itemView(kind string, m map[string]interface{}) map[string]interface{} {
	m["kind"] = kind
	return m
}
