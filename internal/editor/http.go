package editor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Faultbox/mapeditor/internal/objects"
	"github.com/Faultbox/mapeditor/internal/storage"
	"github.com/Faultbox/mapeditor/pkg/math"
)

type objectInfo struct {
	ID       objects.ID `json:"id"`
	Kind     string     `json:"kind"`
	Name     string     `json:"name"`
	Position math.Vec3  `json:"position"`
	Scale    math.Vec3  `json:"scale"`
}

type mapInfo struct {
	Name    string       `json:"name"`
	Objects []objectInfo `json:"objects"`
}

// NewHTTPHandler exposes the editor over HTTP. Every request is run on the
// editor's tick through Submit.
//
//	GET  /map                  loaded map and its objects
//	POST /map/load?name=NAME   load a map from the store
//	POST /map/reload           reload the loaded map
//	POST /map/save?name=NAME   save the live objects (name defaults to the loaded map)
//	POST /objects/{id}         apply a JSON Change and update the object
//	POST /objects/{id}/frame   release the next manual animation frame
func NewHTTPHandler(e *Editor) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /map", func(w http.ResponseWriter, r *http.Request) {
		var info mapInfo
		err := run(r, e, func(e *Editor) error {
			info = describe(e)
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, info)
	})

	mux.HandleFunc("POST /map/load", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "missing name", http.StatusBadRequest)
			return
		}
		respond(w, r, e, func(e *Editor) error { return e.LoadMap(name) })
	})

	mux.HandleFunc("POST /map/reload", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, e, func(e *Editor) error { return e.Reload() })
	})

	mux.HandleFunc("POST /map/save", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		respond(w, r, e, func(e *Editor) error { return e.SaveMap(name) })
	})

	mux.HandleFunc("POST /objects/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := objectID(w, r)
		if !ok {
			return
		}
		var ch Change
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&ch); err != nil {
			http.Error(w, "invalid change: "+err.Error(), http.StatusBadRequest)
			return
		}
		respond(w, r, e, func(e *Editor) error { return e.UpdateObject(id, ch) })
	})

	mux.HandleFunc("POST /objects/{id}/frame", func(w http.ResponseWriter, r *http.Request) {
		id, ok := objectID(w, r)
		if !ok {
			return
		}
		respond(w, r, e, func(e *Editor) error { return e.PlayOneFrame(id) })
	})

	return mux
}

func objectID(w http.ResponseWriter, r *http.Request) (objects.ID, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid object id", http.StatusBadRequest)
		return 0, false
	}
	return objects.ID(id), true
}

// run submits fn and waits for its result or for the request to be cancelled.
func run(r *http.Request, e *Editor, fn func(e *Editor) error) error {
	select {
	case err := <-e.Submit(fn):
		return err
	case <-r.Context().Done():
		return r.Context().Err()
	}
}

func respond(w http.ResponseWriter, r *http.Request, e *Editor, fn func(e *Editor) error) {
	var info mapInfo
	err := run(r, e, func(e *Editor) error {
		err := fn(e)
		info = describe(e)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, info)
}

func describe(e *Editor) mapInfo {
	info := mapInfo{Name: e.MapName(), Objects: []objectInfo{}}
	for _, obj := range e.Objects() {
		t := obj.Transform()
		info.Objects = append(info.Objects, objectInfo{
			ID:       obj.ID(),
			Kind:     obj.Kind().String(),
			Name:     obj.Name(),
			Position: t.Position,
			Scale:    t.Scale,
		})
	}
	return info
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, objects.ErrUnknownObject), errors.Is(err, storage.ErrMapNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidMapName),
		errors.Is(err, ErrUnsupportedChange), errors.Is(err, ErrInvalidChange):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotAnimated), errors.Is(err, ErrNoMapLoaded):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
