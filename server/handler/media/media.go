// Package media holds the HTTP handlers for the media library routes.
package media

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/indieinfra/pantry/asset"
	"github.com/indieinfra/pantry/registry"
	"github.com/indieinfra/pantry/server/handler/common"
	"github.com/indieinfra/pantry/server/resp"
	"github.com/indieinfra/pantry/server/state"
	"github.com/indieinfra/pantry/server/util"
	"github.com/indieinfra/pantry/storage/index"
)

const maxTagsBody = 64 << 10

type tagsRequest struct {
	Tags []string `json:"tags"`
}

// HandleUpload accepts a multipart body with a "file" part and a
// "destination" field of local or remote.
func HandleUpload(st *state.PantryState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := util.RequireMultipartContentType(w, r); !ok {
			return
		}

		maxMemory := int64(st.Cfg.Server.Limits.MaxMultipartMem)
		maxSize := int64(st.Cfg.Server.Limits.MaxFileSize)

		parsed, err := util.ParseMultipart(w, r, maxMemory, maxSize)
		if err != nil {
			writeParseError(w, err)
			return
		}
		defer parsed.CloseFiles()

		dest, err := asset.ParseSource(parsed.Values["destination"])
		if err != nil {
			resp.WriteInvalidRequest(w, "destination must be local or remote")
			return
		}

		mf, data, err := parsed.ReadFile("file", maxSize)
		if err != nil {
			writeParseError(w, err)
			return
		}

		created, err := st.Registry.Upload(r.Context(), registry.UploadRequest{
			Name:        mf.Header.Filename,
			MIMEType:    mf.Header.Header.Get("Content-Type"),
			Data:        data,
			Destination: dest,
		})
		if err != nil {
			common.LogAndWriteError(w, r, "upload", err)
			return
		}

		resp.WriteCreated(w, created.URL, created)
	}
}

func writeParseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, util.ErrFileTooLarge):
		resp.WriteTooLarge(w, err.Error())
	case errors.Is(err, util.ErrMissingFile):
		resp.WriteInvalidRequest(w, "a file part is required")
	default:
		resp.WriteInvalidRequest(w, "malformed multipart body")
	}
}

// HandleList serves the library, filtered by the optional source and type
// query parameters.
func HandleList(st *state.PantryState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var filter index.Filter

		if raw := q.Get("source"); strings.TrimSpace(raw) != "" {
			source, err := asset.ParseSource(raw)
			if err != nil {
				resp.WriteInvalidRequest(w, err.Error())
				return
			}
			filter.Source = source
		}

		if raw := q.Get("type"); strings.TrimSpace(raw) != "" {
			kind, err := asset.ParseKind(raw)
			if err != nil {
				resp.WriteInvalidRequest(w, err.Error())
				return
			}
			filter.Type = kind
		}

		assets, err := st.Registry.List(r.Context(), filter)
		if err != nil {
			common.LogAndWriteError(w, r, "list", err)
			return
		}

		resp.WriteOK(w, assets)
	}
}

func HandleGet(st *state.PantryState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := st.Registry.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			common.LogAndWriteError(w, r, "get", err)
			return
		}

		resp.WriteOK(w, found)
	}
}

func HandleDelete(st *state.PantryState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := st.Registry.Delete(r.Context(), r.PathValue("id"))
		if err != nil {
			common.LogAndWriteError(w, r, "delete", err)
			return
		}

		resp.WriteOK(w, result)
	}
}

func HandleUpdateTags(st *state.PantryState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := util.RequireJSONContentType(w, r); !ok {
			return
		}

		var body tagsRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTagsBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			resp.WriteInvalidRequest(w, "body must be {\"tags\": [...]}")
			return
		}
		if body.Tags == nil {
			resp.WriteInvalidRequest(w, "tags is required")
			return
		}

		updated, err := st.Registry.UpdateTags(r.Context(), r.PathValue("id"), body.Tags)
		if err != nil {
			common.LogAndWriteError(w, r, "update tags", err)
			return
		}

		resp.WriteOK(w, updated)
	}
}

// HandleReconcile reports disk and index divergence for the local store.
func HandleReconcile(st *state.PantryState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := st.Registry.ReconcileLocal(r.Context())
		if err != nil {
			common.LogAndWriteError(w, r, "reconcile", err)
			return
		}

		resp.WriteOK(w, report)
	}
}
