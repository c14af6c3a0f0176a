package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quantumtrader/academy/internal/app"
	"github.com/quantumtrader/academy/internal/course"
	"github.com/quantumtrader/academy/internal/nav"
	"github.com/quantumtrader/academy/internal/page"
	"github.com/quantumtrader/academy/internal/progress"
	"github.com/quantumtrader/academy/internal/report"
	"github.com/quantumtrader/academy/internal/viewer"
)

const (
	maxBodyBytes = 1 << 20
	xlsxType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func handleState(w http.ResponseWriter, r *http.Request, a *app.App) {
	writeJSON(w, http.StatusOK, a.Snapshot())
}

func handleShowLevel(w http.ResponseWriter, r *http.Request, a *app.App) {
	n, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "level must be a number")
		return
	}
	if err := a.ShowLevel(n); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"active_level": n})
}

type topicResponse struct {
	Open  bool       `json:"open"`
	Panel page.Panel `json:"panel"`
}

func handleShowTopic(w http.ResponseWriter, r *http.Request, a *app.App) {
	topicID := chi.URLParam(r, "topicID")
	open, err := a.ShowTopic(r.Context(), topicID)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := topicResponse{Open: open}
	for _, p := range a.Snapshot().Panels {
		if p.TopicID == topicID {
			resp.Panel = p
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type exerciseTextRequest struct {
	Text string `json:"text"`
}

func handleExerciseText(w http.ResponseWriter, r *http.Request, a *app.App) {
	var req exerciseTextRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.SetExerciseText(chi.URLParam(r, "topicID"), req.Text); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type feedbackResponse struct {
	Feedback page.Feedback     `json:"feedback"`
	Class    string            `json:"class"`
	Progress progress.Progress `json:"progress"`
}

func newFeedbackResponse(fb page.Feedback, a *app.App) feedbackResponse {
	return feedbackResponse{Feedback: fb, Class: fb.Class(), Progress: a.Progress()}
}

func handleCheckExercise(w http.ResponseWriter, r *http.Request, a *app.App) {
	fb := a.CheckExercise(r.Context(), chi.URLParam(r, "topicID"))
	writeJSON(w, http.StatusOK, newFeedbackResponse(fb, a))
}

type answerRequest struct {
	OptionID string `json:"option_id"`
}

func handleAnswer(w http.ResponseWriter, r *http.Request, a *app.App) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OptionID == "" {
		writeError(w, http.StatusBadRequest, "option_id is required")
		return
	}
	fb := a.CheckAnswer(r.Context(), chi.URLParam(r, "questionID"), req.OptionID)
	writeJSON(w, http.StatusOK, newFeedbackResponse(fb, a))
}

type controlRequest struct {
	Checked bool `json:"checked"`
}

func handleControl(w http.ResponseWriter, r *http.Request, a *app.App) {
	var req controlRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := a.ToggleControl(r.Context(), chi.URLParam(r, "controlID"), req.Checked)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func handleProgress(w http.ResponseWriter, r *http.Request, a *app.App) {
	writeJSON(w, http.StatusOK, a.Progress())
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

type resetResponse struct {
	Reset    bool              `json:"reset"`
	Progress progress.Progress `json:"progress"`
}

func handleReset(w http.ResponseWriter, r *http.Request, a *app.App) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	done := a.Reset(r.Context(), progress.ConfirmFunc(func(string) bool { return req.Confirm }))
	writeJSON(w, http.StatusOK, resetResponse{Reset: done, Progress: a.Progress()})
}

func handleExport(w http.ResponseWriter, r *http.Request, a *app.App) {
	serveWorkbook(w, a.LearnerID(), func(out io.Writer) error {
		return report.WriteWorkbook(out, a.Report())
	})
}

// serveWorkbook builds the whole workbook before sending headers so a
// failed export is a 500 instead of a truncated file.
func serveWorkbook(w http.ResponseWriter, learnerID string, build func(io.Writer) error) {
	var buf bytes.Buffer
	if err := build(&buf); err != nil {
		slog.Error("exporting progress", "learner_id", learnerID, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="progress-%s.xlsx"`, learnerID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("sending export", "learner_id", learnerID, "error", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeErr maps domain errors to HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, course.ErrTopicNotFound),
		errors.Is(err, course.ErrContentNotFound),
		errors.Is(err, nav.ErrUnknownLevel),
		errors.Is(err, page.ErrNoPanel),
		errors.Is(err, app.ErrUnknownControl):
		status = http.StatusNotFound
	case errors.Is(err, viewer.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, course.ErrMalformed):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response", "error", err)
	}
}
