package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"towermap/internal/models"
)

const (
	defaultMaxUploadBytes int64 = 20 << 20 // 20 MiB
	imageFormField              = "image"
	sniffLen                    = 512
)

func (s *Server) handleCreateMarker(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := parseMarkerForm(r); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyFormError(err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if _, ok := r.PostForm["text"]; !ok {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("text is required"), ErrCodeMissingRequired))
		return
	}

	in := CreateMarkerInput{
		Text: r.PostFormValue("text"),
		Lat:  r.PostFormValue("lat"),
		Lon:  r.PostFormValue("lng"),
		User: markerUser(r),
	}

	file, err := openUploadedImage(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidMultipart))
		return
	}
	if file != nil {
		defer file.Close()
		in.Image = file
	}

	marker, err := s.markers.CreateMarker(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, marker)
}

func parseMarkerForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(defaultMultipartMemory)
	}
	return r.ParseForm()
}

// markerUser prefers the submitted user field, then the signed-in user.
func markerUser(r *http.Request) string {
	if user := strings.TrimSpace(r.PostFormValue("user")); user != "" {
		return user
	}
	if user := principalUser(r.Context()); user != "" {
		return user
	}
	return models.GuestUser
}

// openUploadedImage returns nil when no image part was sent or its filename is empty.
func openUploadedImage(r *http.Request) (io.ReadCloser, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(header.Filename) == "" {
		file.Close()
		return nil, nil
	}
	return file, nil
}

func (s *Server) handleListMarkers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.markers.ListMarkers(r.Context()))
}

func (s *Server) handleDeleteMarker(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, defaultFormMaxBody)
	if err := r.ParseForm(); err != nil {
		s.writeTextErrorReq(w, r, http.StatusBadRequest, classifyFormError(err), legacyDeleteFailureBody)
		return
	}

	id, err := parseMarkerID(r.PostFormValue("id"))
	if err != nil {
		s.writeTextErrorReq(w, r, http.StatusBadRequest, err, legacyDeleteFailureBody)
		return
	}

	existed, err := s.markers.DeleteMarker(r.Context(), id)
	if err != nil {
		s.writeTextErrorReq(w, r, http.StatusInternalServerError, err, legacyDeleteFailureBody)
		return
	}
	if !existed {
		s.log().Debug("delete of unknown marker", "id", id)
	}
	s.writeText(w, http.StatusOK, legacyDeleteSuccessBody)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	rc, err := s.markers.OpenImage(r.Context(), filename)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, filename, time.Time{}, rs)
		return
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		s.writeErrorReq(w, r, http.StatusInternalServerError, blobFailure(err))
		return
	}
	head = head[:n]
	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(head); err != nil {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Warn("stream image", "filename", filename, "error", err)
	}
}
