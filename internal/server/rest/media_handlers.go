package rest

import (
	"crypto/subtle"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	wire "github.com/dmitrijs2005/capsulekeeper/internal/client/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/services"
)

const (
	// multipart framing allowance on top of the media cap
	uploadOverhead = 1 << 20
	// parts above this are spooled to disk by the multipart reader
	uploadMemory = 8 << 20
)

func (s *RESTServer) uploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, common.MaxMediaSize+uploadOverhead)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, services.ErrMediaTooLarge)
			return
		}
		s.writeError(w, r, common.NewValidationError("file", "invalid multipart body: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, common.NewValidationError("file", "file is required"))
		return
	}
	defer file.Close()

	contentType, err := detectContentType(header.Header.Get("Content-Type"), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	m, err := s.capsules.Upload(r.Context(), userFrom(r.Context()), chi.URLParam(r, "capsuleID"), services.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m.Wire())
}

// detectContentType trusts a declared type the capsule accepts, then the
// file extension, then content sniffing. The reader is rewound afterwards.
func detectContentType(declared, filename string, f io.ReadSeeker) (string, error) {
	if _, ok := wire.FileTypeFor(declared); ok {
		return declared, nil
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		if _, ok := wire.FileTypeFor(byExt); ok {
			return byExt, nil
		}
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

func (s *RESTServer) mediaURL(w http.ResponseWriter, r *http.Request) {
	link, err := s.capsules.MediaURL(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (s *RESTServer) deleteMedia(w http.ResponseWriter, r *http.Request) {
	if err := s.capsules.DeleteMedia(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendReminders is triggered by an external scheduler holding the notify
// secret. It is disabled while no secret is configured.
func (s *RESTServer) sendReminders(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(common.NotifySecretHeaderName)
	if s.notifySecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.notifySecret)) != 1 {
		s.writeError(w, r, common.ErrUnauthorized)
		return
	}

	n, err := s.capsules.SendReminders(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": n})
}
