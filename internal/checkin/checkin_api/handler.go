package checkin_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"checkin-gate/internal/checkin/db"
	"checkin-gate/internal/checkin/qr"
	checkin "checkin-gate/internal/checkin/service"
	"checkin-gate/internal/config"
	"checkin-gate/internal/logger"
	"checkin-gate/internal/sse"
	"checkin-gate/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handler struct {
	GateService *checkin.GateService
	Logger      *logger.Logger
	Config      config.GateConfig
	QRGenerator *qr.Generator
	KeyGuard    KeyGuard
	Events      *sse.ArrivalEmitter
	Location    *time.Location

	TrustedProxies []*net.IPNet
}

func NewHandler(svc *checkin.GateService, cfg config.GateConfig, log *logger.Logger) *Handler {
	return &Handler{
		GateService: svc,
		Logger:      log,
		Config:      cfg,
		QRGenerator: qr.NewGenerator(cfg.QRBaseURL),
		Location:    utils.LoadLocation(cfg.DisplayTimezone),

		TrustedProxies: ParseTrustedProxies(cfg.TrustedProxies, log),
	}
}

// NewRouter mounts the gate routes behind the recover and request-log
// middleware. RemoteAddr is never rewritten from request headers; clientAddr
// consults them only for TrustedProxies.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.Logger))
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Health)
	r.Get("/check", h.CheckByID)
	r.Get("/q", h.PreviewToken)
	r.Post("/confirm", h.ConfirmToken)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireOperatorKey)

		r.Get("/reset", h.Reset)
		r.Get("/report", h.Report)
		r.Get("/stats", h.Stats)
		r.Get("/download-db", h.DownloadDB)
		r.Get("/export-tokens", h.ExportTokens)
		r.Get("/qr.png", h.QRCode)
		if h.Events != nil {
			r.Get("/events", h.StreamEvents)
		}
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.renderText(w, http.StatusOK, msgHealthy)
}

// CheckByID handles /check?id=, the direct-id door scan.
func (h *Handler) CheckByID(w http.ResponseWriter, r *http.Request) {
	res, err := h.GateService.AdmitByID(r.Context(), r.URL.Query().Get("id"))
	if errors.Is(err, checkin.ErrMissingCredential) {
		h.renderText(w, http.StatusBadRequest, msgMissingID)
		return
	}
	if err != nil {
		h.renderText(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if res.Outcome == checkin.NotFound {
		h.renderText(w, http.StatusNotFound, msgUnknownID)
		return
	}
	h.renderResult(w, res)
}

// PreviewToken handles /q?token=. It never writes: the guest is admitted
// only when the confirmation form is posted.
func (h *Handler) PreviewToken(w http.ResponseWriter, r *http.Request) {
	res, err := h.GateService.PreviewToken(r.Context(), r.URL.Query().Get("token"))
	if errors.Is(err, checkin.ErrMissingCredential) {
		h.renderText(w, http.StatusBadRequest, msgMissingToken)
		return
	}
	if err != nil {
		h.renderText(w, http.StatusInternalServerError, msgInternal)
		return
	}

	switch res.Outcome {
	case checkin.NotFound:
		h.renderText(w, http.StatusNotFound, msgUnknownToken)
	case checkin.Pending:
		h.renderGate(w, http.StatusOK, gatePage{
			Background: colorPending,
			MainText:   textConfirm,
			Name:       res.Guest.Name,
			Room:       res.Guest.Room,
			Token:      r.URL.Query().Get("token"),
		})
	default:
		h.renderResult(w, res)
	}
}

func (h *Handler) ConfirmToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderText(w, http.StatusBadRequest, msgMissingToken)
		return
	}

	res, err := h.GateService.AdmitByToken(r.Context(), r.PostForm.Get("token"))
	if errors.Is(err, checkin.ErrMissingCredential) {
		h.renderText(w, http.StatusBadRequest, msgMissingToken)
		return
	}
	if err != nil {
		h.renderText(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if res.Outcome == checkin.NotFound {
		h.renderText(w, http.StatusNotFound, msgUnknownToken)
		return
	}
	h.renderResult(w, res)
}

func (h *Handler) renderResult(w http.ResponseWriter, res checkin.Result) {
	page := gatePage{}
	if res.Guest != nil {
		page.Name = res.Guest.Name
		page.Room = res.Guest.Room
	}

	if res.Outcome == checkin.Granted {
		page.Background = colorGranted
		page.MainText = textGranted
		page.ArrivedAt = utils.FormatArrival(res.ArrivedAt, h.Location)
		h.renderGate(w, http.StatusOK, page)
		return
	}

	page.Background = colorDenied
	page.MainText = textDenied
	page.Note = textAlreadyInside
	h.renderGate(w, http.StatusConflict, page)
}

// Reset answers with the bare count of guest rows cleared.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	count, err := h.GateService.ResetEvent(r.Context())
	if err != nil {
		h.renderText(w, http.StatusInternalServerError, msgInternal)
		return
	}
	h.renderText(w, http.StatusOK, strconv.Itoa(count))
}

// Report renders every guest as an HTML table, or JSON with ?format=json.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	guests, err := h.GateService.Report(r.Context())
	if err != nil {
		h.Logger.Error("HTTP", fmt.Sprintf("Report failed: %v", err))
		h.renderText(w, http.StatusInternalServerError, msgInternal)
		return
	}

	noStore(w)
	if r.URL.Query().Get("format") == "json" {
		h.writeJSON(w, guests)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := reportTemplate.Execute(w, h.reportRows(guests)); err != nil {
		h.Logger.Error("HTTP", "Failed to render report: "+err.Error())
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.GateService.Stats(r.Context())
	if err != nil {
		h.Logger.Error("HTTP", fmt.Sprintf("Stats failed: %v", err))
		h.renderText(w, http.StatusInternalServerError, msgInternal)
		return
	}
	noStore(w)
	h.writeJSON(w, stats)
}

func (h *Handler) DownloadDB(w http.ResponseWriter, r *http.Request) {
	data, format, err := h.GateService.Snapshot(r.Context())
	if err != nil {
		h.Logger.Error("HTTP", fmt.Sprintf("Snapshot failed: %v", err))
		h.renderText(w, http.StatusInternalServerError, msgInternal)
		return
	}

	noStore(w)
	if format == db.SnapshotSQLite {
		w.Header().Set("Content-Type", "application/vnd.sqlite3")
		w.Header().Set("Content-Disposition", `attachment; filename="db.sqlite"`)
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="db.json"`)
	}
	w.Write(data)
}

func (h *Handler) ExportTokens(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tokens.csv"`)

	if err := h.GateService.WriteTokensCSV(r.Context(), w, h.Config.QRBaseURL); err != nil {
		h.Logger.Error("HTTP", fmt.Sprintf("Token export failed: %v", err))
		if errors.Is(err, checkin.ErrStorage) {
			h.renderText(w, http.StatusInternalServerError, msgInternal)
		}
	}
}

// QRCode renders the scan link of ?token= as a PNG for reprinting.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.renderText(w, http.StatusBadRequest, msgMissingToken)
		return
	}

	png, err := h.QRGenerator.PNG(token)
	if err != nil {
		h.Logger.Error("HTTP", fmt.Sprintf("QR encode failed: %v", err))
		h.renderText(w, http.StatusInternalServerError, msgInternal)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("HTTP", "Failed to encode response: "+err.Error())
	}
}
