package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bizconnect/db"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Допустимые расширения и содержимое капабилити-стейтмента.
// .docx распознаётся как zip-контейнер, .doc как OLE.
var (
	allowedExtensions = map[string]bool{".pdf": true, ".doc": true, ".docx": true}
	allowedMIME       = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/x-ole-storage",
		"application/zip",
	}
)

const uploadURLPrefix = "/uploads/"

type uploadResponse struct {
	FileName     string `json:"fileName"`
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
}

func allowedContent(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, allowed := range allowedMIME {
			if m.Is(allowed) {
				return true
			}
		}
	}
	return false
}

// UploadCapabilityStatementHandler принимает файл в поле "file" (multipart).
// Если передан userId, путь к файлу записывается в профиль.
func (h *Handler) UploadCapabilityStatementHandler(w http.ResponseWriter, r *http.Request) {
	// запас на заголовки multipart сверх лимита файла
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUpload+1<<20)
	if err := r.ParseMultipartForm(h.MaxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large (max 10MB)")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Size > h.MaxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large (max 10MB)")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		writeError(w, http.StatusBadRequest, "Only PDF, DOC and DOCX files are allowed")
		return
	}

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !allowedContent(mt) {
		writeError(w, http.StatusBadRequest, "File content does not match a PDF or Word document")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.serverError(w, r, err)
		return
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		h.serverError(w, r, err)
		return
	}
	name := "cs-" + uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(h.UploadDir, name))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	size, err := io.Copy(dst, file)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	path := uploadURLPrefix + name
	if raw := strings.TrimSpace(r.FormValue("userId")); raw != "" {
		// ошибка привязки к профилю не отменяет загрузку
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			err = h.Store.SetCapabilityStatement(r.Context(), userID, path)
		}
		if err != nil {
			h.Log.Warn("failed to attach capability statement",
				zap.String("user_id", raw),
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		FileName:     name,
		OriginalName: header.Filename,
		Path:         path,
		Size:         size,
	})
}

// DownloadCapabilityStatementHandler отдаёт загруженный файл поставщика
func (h *Handler) DownloadCapabilityStatementHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := h.Store.GetUserByID(r.Context(), id)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.serverError(w, r, err)
		return
	}
	if user == nil || user.CapabilityStatement == nil || *user.CapabilityStatement == "" {
		writeError(w, http.StatusNotFound, "No capability statement found")
		return
	}

	// в профиле хранится URL-путь, на диске берём только имя файла
	name := filepath.Base(*user.CapabilityStatement)
	full := filepath.Join(h.UploadDir, name)
	if _, err := os.Stat(full); err != nil {
		writeError(w, http.StatusNotFound, "No capability statement found")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, full)
}
