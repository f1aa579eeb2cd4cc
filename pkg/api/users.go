package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/domain"
	"github.com/adfharrison1/go-odm/pkg/models"
	"github.com/adfharrison1/go-odm/pkg/odm"
)

// userView is the wire form of a user. The password hash never leaves the
// service.
func userView(doc *odm.Document) map[string]interface{} {
	return doc.ToMap(odm.Exclude("password"))
}

func userViews(docs []*odm.Document) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		out = append(out, userView(doc))
	}
	return out
}

func byID(r *http.Request) map[string]interface{} {
	return map[string]interface{}{odm.IDKey: mux.Vars(r)["id"]}
}

// validID rejects a path id that is not an ObjectId. Reads would otherwise
// look the raw string up and report the user as missing.
func validID(w http.ResponseWriter, r *http.Request) bool {
	if _, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"]); err != nil {
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("%q is not a valid ObjectId", mux.Vars(r)["id"]))
		return false
	}
	return true
}

// HandleCreateUser handles POST requests creating a user
func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeBody(w, r, &body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.catalog.User.InsertOne(r.Context(), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("user created", zap.String("id", user.ID().Hex()))
	writeJSON(w, http.StatusCreated, userView(user))
}

// HandleBatchCreateUsers handles POST requests inserting several users at
// once. Either every user is inserted or none is.
func (h *Handler) HandleBatchCreateUsers(w http.ResponseWriter, r *http.Request) {
	var body []map[string]interface{}
	if err := decodeBody(w, r, &body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "at least one user is required")
		return
	}

	users, _, err := h.catalog.User.InsertMany(r.Context(), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("users created", zap.Int("count", len(users)))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"inserted": len(users),
		"users":    userViews(users),
	})
}

// HandleListUsers handles GET requests listing users, filtered by query
// parameters
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	filter, opts, err := parseListQuery(h.catalog.User, r.URL.Query())
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := h.catalog.User.FindMany(r.Context(), filter, opts...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userViews(users))
}

// HandleGetUser handles GET requests to retrieve a user by ID
func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	if !validID(w, r) {
		return
	}
	user, err := h.catalog.User.FindOne(r.Context(), byID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user == nil {
		WriteJSONError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, userView(user))
}

// HandleUpdateUser handles PATCH requests applying a partial update
func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeBody(w, r, &body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.catalog.User.UpdateOne(r.Context(), byID(r), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user == nil {
		WriteJSONError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, userView(user))
}

// HandleReplaceUser handles PUT requests replacing a user completely
func (h *Handler) HandleReplaceUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeBody(w, r, &body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.catalog.User.FindOneAndReplace(r.Context(), byID(r), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(user))
}

// HandleFillUser handles PATCH requests setting only the fields of a user
// that are still empty
func (h *Handler) HandleFillUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeBody(w, r, &body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, modified, err := h.catalog.User.FindOneAndUpdateEmptyFields(r.Context(), byID(r), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"modified": modified,
		"user":     userView(user),
	})
}

// HandleDeleteUser handles DELETE requests removing a user by ID
func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !validID(w, r) {
		return
	}
	deleted, err := h.catalog.User.DeleteOne(r.Context(), byID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !deleted {
		WriteJSONError(w, http.StatusNotFound, "user not found")
		return
	}
	h.logger.Info("user deleted", zap.String("id", mux.Vars(r)["id"]))
	w.WriteHeader(http.StatusNoContent)
}

type passwordRequest struct {
	Password string `json:"password"`
}

// HandleVerifyPassword handles POST requests checking a user's password
func (h *Handler) HandleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var body passwordRequest
	if err := decodeBody(w, r, &body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !validID(w, r) {
		return
	}

	user, err := h.catalog.User.FindOne(r.Context(), byID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user == nil {
		WriteJSONError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := models.VerifyPassword(user, body.Password); err != nil {
		h.logger.Debug("password rejected", zap.String("id", user.ID().Hex()), zap.Error(err))
		WriteJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"valid": true})
}

// HandleCountUsers handles GET requests counting users matching the query
// parameters. The count runs as an aggregation.
func (h *Handler) HandleCountUsers(w http.ResponseWriter, r *http.Request) {
	filter, _, err := parseListQuery(h.catalog.User, r.URL.Query())
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	cursors, err := h.catalog.User.AggregateCursors(r.Context(), domain.Pipeline{
		{"$match": domain.Merge(filter)},
		{"$count": "total"},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var total int64
	for _, cur := range cursors {
		for cur.Next(r.Context()) {
			raw, err := cur.Raw()
			if err != nil {
				cur.Close(r.Context())
				h.fail(w, r, err)
				return
			}
			total += toInt64(raw["total"])
		}
		err := cur.Err()
		cur.Close(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"total": total})
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
