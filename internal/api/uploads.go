package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ashureev/sonar-hub/internal/metrics"
	"github.com/ashureev/sonar-hub/internal/render"
	"github.com/ashureev/sonar-hub/internal/upload"
)

const uploadField = "file"

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// UploadImage stores a thumbnail of an uploaded PNG or JPEG as the session's
// pending upload. The previous slot survives any failure.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	kind := string(upload.KindImage)

	file, header, ok := h.readUpload(w, r, kind)
	if !ok {
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
		h.metrics.Upload(kind, metrics.ResultRejected)
		Error(w, http.StatusUnsupportedMediaType, "only PNG and JPEG images are supported")
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		h.metrics.Upload(kind, metrics.ResultError)
		Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	thumb, err := render.Thumbnail(raw, render.ThumbnailSide)
	if err != nil {
		h.metrics.Upload(kind, metrics.ResultError)
		Error(w, http.StatusUnprocessableEntity, "could not decode image: "+err.Error())
		return
	}

	st.Uploads.SetImage(name, uuid.NewString(), thumb)
	h.metrics.Upload(kind, metrics.ResultSuccess)
	JSON(w, http.StatusCreated, st.Uploads.Pending())
}

// UploadData stores a preview of an uploaded CSV or text file as the
// session's pending upload. The previous slot survives any failure.
func (h *Handler) UploadData(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	kind := string(upload.KindText)

	file, header, ok := h.readUpload(w, r, kind)
	if !ok {
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	preview, err := upload.ParseDataFile(name, header.Header.Get("Content-Type"), file)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrUnsupportedType):
			h.metrics.Upload(kind, metrics.ResultRejected)
			Error(w, http.StatusUnsupportedMediaType, "only CSV and TXT files are supported")
		default:
			h.metrics.Upload(kind, metrics.ResultError)
			Error(w, http.StatusUnprocessableEntity, "could not parse file: "+err.Error())
		}
		return
	}

	st.Uploads.SetText(name, preview)
	h.metrics.Upload(kind, metrics.ResultSuccess)
	JSON(w, http.StatusCreated, st.Uploads.Pending())
}

// GetPendingUpload returns the session's upload slot.
func (h *Handler) GetPendingUpload(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, st.Uploads.Pending())
}

// PendingThumbnail serves the pending image upload's thumbnail.
func (h *Handler) PendingThumbnail(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	p := st.Uploads.Pending()
	if p.Kind != upload.KindImage || len(p.Thumbnail) == 0 {
		Error(w, http.StatusNotFound, "no pending image")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.Thumbnail)
}

// readUpload extracts the multipart file field, enforcing the size limit.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, kind string) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		h.metrics.Upload(kind, metrics.ResultRejected)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			Error(w, http.StatusRequestEntityTooLarge, "upload too large")
			return nil, nil, false
		}
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return nil, nil, false
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.metrics.Upload(kind, metrics.ResultRejected)
		Error(w, http.StatusBadRequest, "missing file field")
		return nil, nil, false
	}
	return file, header, true
}
