package http

import (
	"errors"
	"net/http"

	"bilancio/internal/importer"
	applog "bilancio/internal/log"
)

// maxImportSize caps uploaded statement files at 10 MB.
const maxImportSize = 10 << 20

type importResponse struct {
	Ref      string `json:"ref"`
	Rows     int    `json:"rows"`
	Fallback bool   `json:"fallback,omitempty"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	hf := s.currentHousehold()
	svc := importer.NewService(s.parsers, s.backend, s.imports, hf.Household(), hf.SplitMode())

	result, err := svc.Import(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, importer.ErrUnsupportedFormat) {
			writeError(w, r, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Statement import failed",
			"filename", header.Filename, "error", err)
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// Imported rows land in month views; drop them all since the batch can
	// span months.
	s.txnCache.Flush()

	writeJSON(w, r, http.StatusCreated, importResponse{
		Ref:      result.Ref,
		Rows:     result.Rows,
		Fallback: result.Fallback,
	})
}
