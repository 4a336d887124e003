// Package http provides the HTTP handlers and routing of the vault API.
package http

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/atinyakov/linkvault/internal/middleware"
	"github.com/atinyakov/linkvault/internal/models"
	"github.com/atinyakov/linkvault/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MaxUploadSize is the largest accepted file payload.
const MaxUploadSize = 5 << 20

// formOverhead is the allowance for the other form fields and multipart
// framing on top of the file itself.
const formOverhead = 1 << 20

// PasswordHeader carries the link password on read and destroy requests.
const PasswordHeader = "X-Link-Password"

// AllowedContentTypes lists the media types accepted for file uploads.
var AllowedContentTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"application/pdf":    true,
	"application/zip":    true,
	"text/plain":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// VaultService defines the vault operations required by the HTTP handlers.
type VaultService interface {
	Deposit(ctx context.Context, req service.DepositRequest) (*models.VaultItem, error)
	View(ctx context.Context, id, password string) (*service.ItemView, error)
	Download(ctx context.Context, id, password string) (*service.Download, error)
	Destroy(ctx context.Context, id, password string) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Summary, error)
}

// VaultHandler serves the deposit, read, download, destroy and listing endpoints.
type VaultHandler struct {
	// VaultService performs the underlying lifecycle operations.
	VaultService VaultService
	// PublicBaseURL prefixes share links, without a trailing slash.
	PublicBaseURL string
	Logger        *zap.Logger
}

// UploadResponse is returned by a successful deposit.
type UploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (h *VaultHandler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Upload handles POST /api/upload. It expects a multipart form with the
// fields type, text, file, expiryDate, maxViews, isOneTime and password.
// The file part is size and type checked here, before the service sees it.
func (h *VaultHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+formOverhead)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			writeError(w, http.StatusBadRequest, "File too large. Max limit is 5MB.", codeValidation)
			return
		case errors.Is(err, http.ErrNotMultipart):
			if err := r.ParseForm(); err != nil {
				writeError(w, http.StatusBadRequest, "invalid form", codeValidation)
				return
			}
		default:
			writeError(w, http.StatusBadRequest, "invalid form", codeValidation)
			return
		}
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	req := service.DepositRequest{
		Kind:      models.ItemKind(r.FormValue("type")),
		Text:      r.FormValue("text"),
		ExpiresAt: r.FormValue("expiryDate"),
		MaxViews:  r.FormValue("maxViews"),
		OneTime:   r.FormValue("isOneTime") == "true",
		Password:  r.FormValue("password"),
		OwnerID:   middleware.GetUserIDFromContext(r.Context()),
	}

	if req.Kind == models.KindFile {
		file, header, err := r.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart):
		case err != nil:
			writeError(w, http.StatusBadRequest, "invalid file", codeValidation)
			return
		default:
			defer file.Close()
			upload, msg := checkUpload(file, header)
			if msg != "" {
				writeError(w, http.StatusBadRequest, msg, codeValidation)
				return
			}
			req.File = upload
		}
	}

	item, err := h.VaultService.Deposit(r.Context(), req)
	if err != nil {
		fail(w, h.log(), "upload", err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		ID:  item.ID,
		URL: h.PublicBaseURL + "/v/" + item.ID,
	})
}

func checkUpload(file multipart.File, header *multipart.FileHeader) (*service.Upload, string) {
	if header.Size > MaxUploadSize {
		return nil, "File too large. Max limit is 5MB."
	}
	ct, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil || !AllowedContentTypes[ct] {
		return nil, "Invalid file type. Only Images, PDF, Zip, and Docs are allowed."
	}
	return &service.Upload{
		Name:        filepath.Base(header.Filename),
		ContentType: ct,
		Size:        header.Size,
		Body:        file,
	}, ""
}

// Content handles GET /api/content/{id}.
func (h *VaultHandler) Content(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := h.VaultService.View(r.Context(), id, r.Header.Get(PasswordHeader))
	if err != nil {
		fail(w, h.log(), "content", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Download handles GET /api/download/{id} and streams the blob as an
// attachment under its original file name.
func (h *VaultHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dl, err := h.VaultService.Download(r.Context(), id, r.Header.Get(PasswordHeader))
	if err != nil {
		fail(w, h.log(), "download", err)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", downloadContentType(dl.FileName))
	w.Header().Set("Content-Disposition", contentDisposition(dl.FileName))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		h.log().Warn("download interrupted", zap.String("id", id), zap.Error(err))
	}
}

// downloadContentType derives the served type from the file name, but only
// types accepted at upload are passed through. Anything else is served as
// an opaque byte stream.
func downloadContentType(name string) string {
	ct, _, err := mime.ParseMediaType(mime.TypeByExtension(strings.ToLower(filepath.Ext(name))))
	if err != nil || !AllowedContentTypes[ct] {
		return "application/octet-stream"
	}
	return ct
}

func contentDisposition(name string) string {
	if name == "" {
		return "attachment"
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// Delete handles DELETE /api/delete/{id}.
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.VaultService.Destroy(r.Context(), id, r.Header.Get(PasswordHeader)); err != nil {
		fail(w, h.log(), "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MyLinks handles GET /api/my-links for the resolved identity.
func (h *VaultHandler) MyLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.VaultService.ListByOwner(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.log(), "list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.Summary{"links": links})
}
