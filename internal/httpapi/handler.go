package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Adrieleise/upnxt/internal/models"
	"github.com/Adrieleise/upnxt/internal/queue"
	"github.com/Adrieleise/upnxt/internal/scheduler"
	"github.com/Adrieleise/upnxt/internal/store"

	"github.com/google/uuid"
)

type QueueEngine interface {
	Queue(ctx context.Context, doctorID string) ([]models.Patient, error)
	Join(ctx context.Context, doctor models.Doctor, name, phone string) (models.Patient, error)
	Reorder(ctx context.Context, doctorID string, orderedIDs []string) error
	MoveAdjacent(ctx context.Context, doctorID, patientID, direction string) error
	SkipToPosition(ctx context.Context, doctorID, patientID string, newPosition int) error
	Complete(ctx context.Context, doctorID, patientID, outcome string) error
}

type Resetter interface {
	ManualReset(ctx context.Context) error
}

type Analytics interface {
	Range(ctx context.Context, doctorID, from, to string) ([]models.DailyAnalytics, error)
	Recompute(ctx context.Context, doctorID, date string) (models.DailyAnalytics, error)
}

// Notifier is told after every successful queue mutation so watchers can
// refresh. A nil Notifier is fine.
type Notifier interface {
	BroadcastQueueUpdated(doctorID string, payload json.RawMessage)
}

type Handler struct {
	engine    QueueEngine
	doctors   store.DoctorStore
	analytics Analytics
	resetter  Resetter
	notifier  Notifier
}

func NewHandler(engine QueueEngine, doctors store.DoctorStore, analytics Analytics, resetter Resetter, notifier Notifier) *Handler {
	return &Handler{
		engine:    engine,
		doctors:   doctors,
		analytics: analytics,
		resetter:  resetter,
		notifier:  notifier,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/queue", h.handleQueue)
	mux.HandleFunc("/api/queue/join", h.handleJoin)
	mux.HandleFunc("/api/queue/reorder", h.handleReorder)
	mux.HandleFunc("/api/patients/", h.handlePatientActions)
	mux.HandleFunc("/api/reset", h.handleReset)
	mux.HandleFunc("/api/analytics", h.handleAnalytics)
	mux.HandleFunc("/api/analytics/recompute", h.handleRecompute)
	mux.HandleFunc("/api/doctors", h.handleDoctors)
	mux.HandleFunc("/api/doctors/", h.handleDoctorByID)
	return mux
}

type errorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type joinRequest struct {
	RequestID string `json:"request_id"`
	DoctorID  string `json:"doctor_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req joinRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)

	if req.DoctorID == "" || req.Name == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "doctor_id and name are required")
		return
	}
	if !isValidUUID(req.DoctorID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}
	if req.Phone != "" && !isValidPhone(req.Phone) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "phone must be 8-16 digits")
		return
	}

	doctor, err := h.doctors.GetDoctor(r.Context(), req.DoctorID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	if !doctor.AcceptingQueues {
		writeError(w, req.RequestID, http.StatusConflict, "doctor_not_accepting", "doctor is not accepting queues")
		return
	}

	patient, err := h.engine.Join(r.Context(), doctor, req.Name, req.Phone)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	h.notifyQueue(doctor.DoctorID)
	writeJSON(w, http.StatusOK, patient)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	if doctorID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "doctor_id is required")
		return
	}
	if !isValidUUID(doctorID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}

	patients, err := h.engine.Queue(r.Context(), doctorID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if patients == nil {
		patients = []models.Patient{}
	}
	writeJSON(w, http.StatusOK, patients)
}

type reorderRequest struct {
	RequestID  string   `json:"request_id"`
	DoctorID   string   `json:"doctor_id"`
	PatientIDs []string `json:"patient_ids"`
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req reorderRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)

	if req.DoctorID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "doctor_id is required")
		return
	}
	if !isValidUUID(req.DoctorID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}
	for _, id := range req.PatientIDs {
		if !isValidUUID(id) {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "patient_ids must be UUIDs")
			return
		}
	}

	if err := h.engine.Reorder(r.Context(), req.DoctorID, req.PatientIDs); err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	h.notifyQueue(req.DoctorID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePatientActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/patients/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[1] != "actions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	patientID := parts[0]
	action := parts[2]
	if !isValidUUID(patientID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "patient_id must be a UUID")
		return
	}

	switch action {
	case "move-up":
		h.handleMove(w, r, patientID, queue.DirectionUp)
	case "move-down":
		h.handleMove(w, r, patientID, queue.DirectionDown)
	case "skip":
		h.handleSkip(w, r, patientID)
	case "complete":
		h.handleComplete(w, r, patientID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type patientActionRequest struct {
	RequestID string `json:"request_id"`
	DoctorID  string `json:"doctor_id"`
	Position  int    `json:"position,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
}

func (h *Handler) decodeAction(w http.ResponseWriter, r *http.Request) (patientActionRequest, bool) {
	var req patientActionRequest
	if !decodeRequest(w, r, &req) {
		return req, false
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.Outcome = strings.TrimSpace(req.Outcome)
	if req.DoctorID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "doctor_id is required")
		return req, false
	}
	if !isValidUUID(req.DoctorID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return req, false
	}
	return req, true
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request, patientID, direction string) {
	req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	if err := h.engine.MoveAdjacent(r.Context(), req.DoctorID, patientID, direction); err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	h.notifyQueue(req.DoctorID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request, patientID string) {
	req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	if req.Position <= 0 {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "position must be a positive integer")
		return
	}
	if err := h.engine.SkipToPosition(r.Context(), req.DoctorID, patientID, req.Position); err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	h.notifyQueue(req.DoctorID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request, patientID string) {
	req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	if req.Outcome == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "outcome is required")
		return
	}
	if err := h.engine.Complete(r.Context(), req.DoctorID, patientID, req.Outcome); err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	h.notifyQueue(req.DoctorID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.resetter.ManualReset(r.Context()); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if doctorID != "" && !isValidUUID(doctorID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}
	for _, date := range []string{from, to} {
		if date != "" && !isValidDate(date) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "from and to must be YYYY-MM-DD dates")
			return
		}
	}

	records, err := h.analytics.Range(r.Context(), doctorID, from, to)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if records == nil {
		records = []models.DailyAnalytics{}
	}
	writeJSON(w, http.StatusOK, records)
}

type recomputeRequest struct {
	RequestID string `json:"request_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req recomputeRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.Date = strings.TrimSpace(req.Date)

	if req.DoctorID == "" || req.Date == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "doctor_id and date are required")
		return
	}
	if !isValidUUID(req.DoctorID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}
	if !isValidDate(req.Date) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "date must be a YYYY-MM-DD date")
		return
	}

	summary, err := h.analytics.Recompute(r.Context(), req.DoctorID, req.Date)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type createDoctorRequest struct {
	RequestID string `json:"request_id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

func (h *Handler) handleDoctors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		doctors, err := h.doctors.ListDoctors(r.Context())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		if doctors == nil {
			doctors = []models.Doctor{}
		}
		writeJSON(w, http.StatusOK, doctors)
	case http.MethodPost:
		var req createDoctorRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		req.RequestID = strings.TrimSpace(req.RequestID)
		req.Name = strings.TrimSpace(req.Name)
		req.Specialty = strings.TrimSpace(req.Specialty)
		if req.Name == "" {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "name is required")
			return
		}
		doctor, err := h.doctors.CreateDoctor(r.Context(), req.Name, req.Specialty)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, req.RequestID, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, doctor)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type acceptingRequest struct {
	RequestID string `json:"request_id"`
	Accepting bool   `json:"accepting"`
}

func (h *Handler) handleDoctorByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/doctors/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		doctorID := parts[0]
		if !isValidUUID(doctorID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
			return
		}
		if err := h.doctors.DeleteDoctor(r.Context(), doctorID); err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "accepting" && r.Method == http.MethodPost:
		doctorID := parts[0]
		if !isValidUUID(doctorID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
			return
		}
		var req acceptingRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if err := h.doctors.SetAccepting(r.Context(), doctorID, req.Accepting); err != nil {
			status, code, msg := mapError(err)
			writeError(w, strings.TrimSpace(req.RequestID), status, code, msg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) notifyQueue(doctorID string) {
	if h.notifier == nil {
		return
	}
	h.notifier.BroadcastQueueUpdated(doctorID, nil)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrDoctorNotFound):
		return http.StatusNotFound, "not_found", "doctor not found"
	case errors.Is(err, store.ErrPatientNotFound):
		return http.StatusNotFound, "not_found", "patient not found"
	case errors.Is(err, queue.ErrDoctorNotAccepting):
		return http.StatusConflict, "doctor_not_accepting", "doctor is not accepting queues"
	case errors.Is(err, queue.ErrNotWaiting):
		return http.StatusConflict, "not_waiting", "patient is not in the waiting queue"
	case errors.Is(err, queue.ErrPermutationMismatch):
		return http.StatusConflict, "permutation_mismatch", "patient_ids must be a permutation of the waiting queue"
	case errors.Is(err, queue.ErrInvalidTarget):
		return http.StatusBadRequest, "invalid_target", "target position is not reachable"
	case errors.Is(err, queue.ErrAlreadySkipped):
		return http.StatusConflict, "already_skipped", "patient has already been skipped once"
	case errors.Is(err, queue.ErrInvalidOutcome):
		return http.StatusBadRequest, "invalid_request", "outcome must be served, skipped, or canceled"
	case errors.Is(err, queue.ErrConcurrentModification):
		return http.StatusConflict, "conflict", "queue changed concurrently, retry the request"
	case errors.Is(err, scheduler.ErrResetInProgress):
		return http.StatusConflict, "conflict", "a reset is already in progress"
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable", "storage temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidPhone(value string) bool {
	if len(value) < 8 || len(value) > 16 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isValidDate(value string) bool {
	_, err := time.Parse(models.DateFormat, value)
	return err == nil
}
