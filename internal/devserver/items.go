package devserver

import (
	"encoding/json"
	"maps"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Item is a free-form JSON object. The server owns "id", "created_at" and
// "updated_at".
type Item map[string]any

func (s *Server) stamp(item Item, id string, created time.Time) Item {
	item["id"] = id
	item["created_at"] = created.UTC().Format(time.RFC3339)
	item["updated_at"] = s.cfg.Clock.Now().UTC().Format(time.RFC3339)
	return item
}

func decodeItem(r *http.Request) (Item, bool) {
	var item Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil || item == nil {
		return nil, false
	}
	return item, true
}

func (s *Server) handleListItems(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	items := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, maps.Clone(s.items[id]))
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	item, ok := decodeItem(r)
	if !ok {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := uuid.NewString()
	item = s.stamp(item, id, s.cfg.Clock.Now())

	s.mu.Lock()
	s.items[id] = item
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.publish("item.created", maps.Clone(item))
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	item, ok := s.items[id]
	if ok {
		item = maps.Clone(item)
	}
	s.mu.RUnlock()

	if !ok {
		writeText(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleReplaceItem(w http.ResponseWriter, r *http.Request) {
	s.updateItem(w, r, func(_ Item, body Item) Item { return body })
}

func (s *Server) handlePatchItem(w http.ResponseWriter, r *http.Request) {
	s.updateItem(w, r, func(current Item, body Item) Item {
		merged := maps.Clone(current)
		for key, value := range body {
			if value == nil {
				delete(merged, key)
				continue
			}
			merged[key] = value
		}
		return merged
	})
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request, apply func(current, body Item) Item) {
	id := mux.Vars(r)["id"]
	body, ok := decodeItem(r)
	if !ok {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	current, exists := s.items[id]
	if !exists {
		s.mu.Unlock()
		writeText(w, http.StatusNotFound, "Not found")
		return
	}
	createdAt, _ := current["created_at"].(string)
	created, _ := time.Parse(time.RFC3339, createdAt)
	updated := s.stamp(apply(current, body), id, created)
	s.items[id] = updated
	updated = maps.Clone(updated)
	s.mu.Unlock()

	s.publish("item.updated", updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	_, exists := s.items[id]
	if exists {
		delete(s.items, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if !exists {
		writeText(w, http.StatusNotFound, "Not found")
		return
	}

	s.publish("item.deleted", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
