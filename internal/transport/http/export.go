package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/claytondukes/dibo-gems/internal/domain"
	"github.com/claytondukes/dibo-gems/internal/export"
)

// CatalogExporter is the minimal interface needed for the export endpoint.
type CatalogExporter interface {
	Export(ctx context.Context) (map[domain.Tier]map[string]domain.Gem, error)
}

// HandleExport returns an HTTP handler for GET /export?format=json|yaml|csv.
func HandleExport(svc CatalogExporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}

		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidFormat, err.Error())
			return
		}

		catalog, err := svc.Export(r.Context())
		if err != nil {
			writeServiceError(w, r, err, time.Now())
			return
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, format, catalog); err != nil {
			if errors.Is(err, export.ErrUnknownFormat) {
				writeError(w, http.StatusBadRequest, codeInvalidFormat, err.Error())
				return
			}
			writeServiceError(w, r, err, time.Now())
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="`+format.FileName()+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}
