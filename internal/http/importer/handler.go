package importer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/tesouraria/internal/http/api"
	"github.com/MrJamesThe3rd/tesouraria/internal/importer"
)

const maxUploadSize = 10 << 20

type Handler struct {
	svc *importer.Service
}

func NewHandler(svc *importer.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importFile)
	r.Get("/formats", h.formats)
}

type rowErrorResponse struct {
	Ref    string `json:"ref"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

type warningResponse struct {
	Computed api.Money `json:"computed"`
	Expected api.Money `json:"expected"`
	Delta    api.Money `json:"delta"`
}

type runResponse struct {
	Period         string             `json:"period"`
	Read           int                `json:"read"`
	New            int                `json:"new"`
	Duplicate      int                `json:"duplicate"`
	Inserted       int                `json:"inserted"`
	RejectedClosed int                `json:"rejected_closed"`
	RowErrors      []rowErrorResponse `json:"row_errors,omitempty"`
	Figures        *api.Figures       `json:"figures,omitempty"`
	Warning        *warningResponse   `json:"warning,omitempty"`
	Error          string             `json:"error,omitempty"`
	CheckError     string             `json:"check_error,omitempty"`
}

type reportResponse struct {
	DryRun bool          `json:"dry_run"`
	Runs   []runResponse `json:"periods"`
	Failed []string      `json:"failed,omitempty"`
	// Error is set when the import stopped before every period was processed.
	Error string `json:"error,omitempty"`
}

func toRunResponse(run *importer.Run) runResponse {
	resp := runResponse{
		Period:         run.Period.String(),
		Read:           run.Read,
		New:            run.New,
		Duplicate:      run.Duplicate,
		Inserted:       run.Inserted,
		RejectedClosed: run.RejectedClosed,
		Figures:        api.ToFigures(run.Figures),
	}

	for _, re := range run.RowErrors {
		resp.RowErrors = append(resp.RowErrors, rowErrorResponse{Ref: re.Ref, Field: re.Field, Reason: re.Reason})
	}

	if w := run.Warning; w != nil {
		resp.Warning = &warningResponse{
			Computed: api.Money(w.Computed.StringFixed(2)),
			Expected: api.Money(w.Expected.StringFixed(2)),
			Delta:    api.Money(w.Delta.StringFixed(2)),
		}
	}

	if run.Err != nil {
		resp.Error = run.Err.Error()
	}

	if run.CheckErr != nil {
		resp.CheckError = run.CheckErr.Error()
	}

	return resp
}

func toReportResponse(report importer.Report, dryRun bool) reportResponse {
	resp := reportResponse{DryRun: dryRun, Runs: make([]runResponse, 0, len(report))}

	for _, key := range report.Keys() {
		resp.Runs = append(resp.Runs, toRunResponse(report[key]))
	}

	for _, key := range report.Failed() {
		resp.Failed = append(resp.Failed, key.String())
	}

	return resp
}

func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		api.Fail(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	format := importer.Format(r.FormValue("format"))
	if format == "" {
		format = importer.FormatAuto
	}

	dryRun := false

	if s := r.FormValue("dry_run"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "dry_run must be a boolean")
			return
		}

		dryRun = v
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if err := sniff(file); err != nil {
		api.Fail(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	report, err := h.svc.Import(r.Context(), format, file, dryRun)
	if err != nil && report == nil {
		api.Fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := toReportResponse(report, dryRun)

	if err != nil {
		resp.Error = err.Error()

		if errors.Is(err, context.Canceled) {
			api.JSON(w, http.StatusRequestTimeout, resp)
			return
		}
	}

	api.JSON(w, http.StatusOK, resp)
}

// sniff accepts only text files and rewinds the upload.
func sniff(file io.ReadSeeker) error {
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return errors.New("could not read upload")
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return errors.New("could not read upload")
	}

	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return nil
		}
	}

	return errors.New("unsupported file type " + mtype.String() + ": export the sheet as CSV")
}

func (h *Handler) formats(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, h.svc.Formats())
}
