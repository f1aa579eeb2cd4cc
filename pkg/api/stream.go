package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// HandleStreamItems handles GET requests streaming every item as a JSON
// array. Documents are read from one lazy cursor per item collection, so
// the result set is never held in memory.
// NOTE: limit and skip apply per collection here, the way they do for all
// queries on the item base model.
func (h *Handler) HandleStreamItems(w http.ResponseWriter, r *http.Request) {
	filter, opts, err := parseListQuery(h.catalog.Item, r.URL.Query())
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	cursors, err := h.catalog.Item.FindCursors(ctx, filter, opts...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer func() {
		for _, cur := range cursors {
			cur.Close(ctx)
		}
	}()

	// Set headers for streaming
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	w.Write([]byte("[\n"))

	first := true
	count := 0
	for _, cur := range cursors {
		for cur.Next(ctx) {
			item, err := cur.Document()
			if err != nil {
				h.logger.Warn("skipping unreadable item", zap.String("collection", cur.Model().CollectionName()), zap.Error(err))
				continue
			}
			line, err := json.Marshal(itemView(item.Model().Name(), item.ToMap()))
			if err != nil {
				h.logger.Warn("skipping unencodable item", zap.String("id", item.ID().Hex()), zap.Error(err))
				continue
			}

			if !first {
				w.Write([]byte(",\n"))
			}
			first = false
			if _, err := w.Write(line); err != nil {
				h.logger.Debug("client went away", zap.Error(err))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			count++
		}
		if err := cur.Err(); err != nil {
			// Headers are gone; the truncated array tells the client.
			h.logger.Error("item stream failed", zap.String("collection", cur.Model().CollectionName()), zap.Error(err))
			return
		}
	}

	w.Write([]byte("\n]\n"))
	h.logger.Debug("streamed items", zap.Int("count", count))
}
