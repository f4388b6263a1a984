package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/anvil"
	"github.com/xraph/anvil/internal/logger"
	"github.com/xraph/anvil/internal/school"
)

type errorResponse struct {
	Error string `json:"error"`
}

type reassignRequest struct {
	To string `json:"to"`
}

type reassignResponse struct {
	Moved int `json:"moved"`
}

type studentsRequest struct {
	Delta int `json:"delta"`
}

type studentsResponse struct {
	StudentCount int `json:"studentCount"`
}

// handler serves the school API. Services are looked up through the
// published container on every request.
type handler struct {
	log logger.Logger
}

func newRouter(a *app) http.Handler {
	h := &handler{log: a.log.Named("http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.health)

	r.Route("/teachers", func(r chi.Router) {
		r.Get("/", h.listTeachers)
		r.Post("/", h.createTeacher)
		r.Get("/{id}", h.getTeacher)
		r.Put("/{id}", h.updateTeacher)
		r.Delete("/{id}", h.deleteTeacher)
		r.Get("/{id}/clazzes", h.listTeacherClazzes)
		r.Post("/{id}/reassign", h.reassignTeacher)
	})

	r.Route("/clazzes", func(r chi.Router) {
		r.Get("/", h.listClazzes)
		r.Post("/", h.createClazz)
		r.Get("/{id}", h.getClazz)
		r.Put("/{id}", h.updateClazz)
		r.Delete("/{id}", h.deleteClazz)
		r.Post("/{id}/students", h.adjustStudents)
	})

	if a.metrics.Enabled() {
		r.Handle(a.metrics.Path(), a.metrics.Handler())
	}

	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.log.Debug("request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	c, err := anvil.CurrentContainer()
	if err == nil {
		err = c.Health(r.Context())
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listTeachers(w http.ResponseWriter, r *http.Request) {
	svc, err := anvil.Lookup[school.TeacherService](school.TeacherServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	teachers, err := svc.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, teachers)
}

func (h *handler) getTeacher(w http.ResponseWriter, r *http.Request) {
	svc, err := anvil.Lookup[school.TeacherService](school.TeacherServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	t, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, t)
}

func (h *handler) createTeacher(w http.ResponseWriter, r *http.Request) {
	var t school.Teacher
	if !h.decode(w, r, &t) {
		return
	}
	svc, err := anvil.Lookup[school.TeacherService](school.TeacherServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := svc.Create(r.Context(), &t); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, t)
}

func (h *handler) updateTeacher(w http.ResponseWriter, r *http.Request) {
	var t school.Teacher
	if !h.decode(w, r, &t) {
		return
	}
	t.ID = chi.URLParam(r, "id")

	svc, err := anvil.Lookup[school.TeacherService](school.TeacherServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := svc.Update(r.Context(), &t); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, t)
}

func (h *handler) deleteTeacher(w http.ResponseWriter, r *http.Request) {
	svc, err := anvil.Lookup[school.TeacherService](school.TeacherServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listTeacherClazzes(w http.ResponseWriter, r *http.Request) {
	svc, err := anvil.Lookup[school.ClazzService](school.ClazzServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	clazzes, err := svc.ListByTeacher(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, clazzes)
}

func (h *handler) reassignTeacher(w http.ResponseWriter, r *http.Request) {
	var req reassignRequest
	if !h.decode(w, r, &req) {
		return
	}
	svc, err := anvil.Lookup[school.TeacherService](school.TeacherServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	moved, err := svc.Reassign(r.Context(), chi.URLParam(r, "id"), req.To)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, reassignResponse{Moved: moved})
}

func (h *handler) listClazzes(w http.ResponseWriter, r *http.Request) {
	svc, err := anvil.Lookup[school.ClazzService](school.ClazzServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	clazzes, err := svc.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, clazzes)
}

func (h *handler) getClazz(w http.ResponseWriter, r *http.Request) {
	svc, err := anvil.Lookup[school.ClazzService](school.ClazzServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	c, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

func (h *handler) createClazz(w http.ResponseWriter, r *http.Request) {
	var c school.Clazz
	if !h.decode(w, r, &c) {
		return
	}
	svc, err := anvil.Lookup[school.ClazzService](school.ClazzServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := svc.Create(r.Context(), &c); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, c)
}

func (h *handler) updateClazz(w http.ResponseWriter, r *http.Request) {
	var c school.Clazz
	if !h.decode(w, r, &c) {
		return
	}
	c.ID = chi.URLParam(r, "id")

	svc, err := anvil.Lookup[school.ClazzService](school.ClazzServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := svc.Update(r.Context(), &c); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

func (h *handler) deleteClazz(w http.ResponseWriter, r *http.Request) {
	svc, err := anvil.Lookup[school.ClazzService](school.ClazzServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) adjustStudents(w http.ResponseWriter, r *http.Request) {
	var req studentsRequest
	if !h.decode(w, r, &req) {
		return
	}
	svc, err := anvil.Lookup[school.ClazzService](school.ClazzServiceName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	count, err := svc.AdjustStudentCount(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, studentsResponse{StudentCount: count})
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (h *handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("failed to encode response", logger.Error(err))
	}
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	h.respond(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, school.ErrTeacherNotFound), errors.Is(err, school.ErrClazzNotFound):
		return http.StatusNotFound
	case errors.Is(err, school.ErrInvalidInput), anvil.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, school.ErrClazzHasStudents):
		return http.StatusConflict
	case errors.Is(err, anvil.ErrContainerNotSetSentinel):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
