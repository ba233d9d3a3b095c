package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"strings"

	"fitness-coach/internal/app"
	"fitness-coach/internal/auth"
	"fitness-coach/internal/decide"
	"fitness-coach/internal/llm"
	"fitness-coach/internal/migration"
	"fitness-coach/internal/observe"
	"fitness-coach/internal/plan"
	"fitness-coach/internal/scan"
	"fitness-coach/internal/storage"
)

const maxUploadBytes = 10 << 20

// Server exposes the application operations over HTTP. Anonymous routes
// carry a session id; everything else requires a bearer token.
type Server struct {
	app      *app.App
	verifier *auth.Verifier
	store    *storage.ObjectStore
}

// NewServer builds the route table and returns the root handler.
func NewServer(a *app.App, verifier *auth.Verifier, store *storage.ObjectStore) http.Handler {
	s := &Server{app: a, verifier: verifier, store: store}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /media/{ref...}", s.handleMedia)

	mux.HandleFunc("POST /anonymous/upload", s.handleAnonymousUpload)
	mux.HandleFunc("POST /anonymous/analyze", s.handleAnonymousAnalyze)
	mux.HandleFunc("POST /anonymous/generate", s.handleAnonymousGenerate)
	mux.HandleFunc("POST /anonymous/generate-all", s.handleAnonymousGenerateAll)
	mux.HandleFunc("GET /anonymous/results/{id}", s.handleAnonymousResults)
	mux.HandleFunc("POST /anonymous/migrate", s.handleMigrate)

	mux.HandleFunc("POST /observe/upload", s.authed(s.handleUpload))
	mux.HandleFunc("POST /observe/analyze", s.authed(s.handleAnalyze))
	mux.HandleFunc("POST /observe/generate", s.authed(s.handleGenerate))
	mux.HandleFunc("POST /observe/generate-all", s.authed(s.handleGenerateAll))

	mux.HandleFunc("POST /decide/save", s.authed(s.handleSaveSnapshot))
	mux.HandleFunc("POST /decide/suggest", s.authed(s.handleSuggest))
	mux.HandleFunc("POST /decide/commit", s.authed(s.handleCommit))
	mux.HandleFunc("GET /decide/state", s.authed(s.handleState))

	mux.HandleFunc("POST /act/generate-plan", s.authed(s.handleGeneratePlan))
	mux.HandleFunc("POST /act/chat", s.authed(s.handleChat))
	mux.HandleFunc("POST /act/move-day", s.authed(s.handleMoveDay))
	mux.HandleFunc("GET /act/plan", s.authed(s.handleGetPlan))

	return mux
}

type authedHandler func(w http.ResponseWriter, r *http.Request, id auth.Identity)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.verifier.FromAuthorizationHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, err)
			return
		}
		h(w, r, id)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	data, err := s.store.Get(ref)
	if err != nil {
		writeError(w, err)
		return
	}
	contentType := mime.TypeByExtension(path.Ext(ref))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

// ---- Observe ----

type uploadResponse struct {
	SessionID string `json:"session_id,omitempty"`
	PhotoRef  string `json:"photo_ref"`
}

func (s *Server) handleAnonymousUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := readPhoto(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	rec, err := s.app.UploadAnonymous(r.Context(), r.FormValue("session_id"), name, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{SessionID: rec.SessionID, PhotoRef: rec.PhotoRef})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	name, data, err := readPhoto(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	rec, err := s.app.Upload(r.Context(), id, name, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{PhotoRef: rec.PhotoRef})
}

func readPhoto(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, errors.New("expected multipart form with a photo field")
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		return "", nil, errors.New("photo field is required")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return "", nil, errors.New("failed to read photo")
	}
	return header.Filename, data, nil
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
	Goal      string `json:"goal,omitempty"`
}

func (s *Server) handleAnonymousAnalyze(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	analysis, err := s.app.Analyze(r.Context(), auth.Anonymous(req.SessionID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	analysis, err := s.app.Analyze(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleAnonymousGenerate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	img, err := s.app.Generate(r.Context(), auth.Anonymous(req.SessionID), req.Goal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	img, err := s.app.Generate(r.Context(), id, req.Goal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

type goalImageResult struct {
	Image *scan.GeneratedImage `json:"image,omitempty"`
	Error string               `json:"error,omitempty"`
}

func toGenerateAllResponse(results map[scan.Goal]observe.GoalResult) map[string]goalImageResult {
	out := make(map[string]goalImageResult, len(results))
	for goal, res := range results {
		entry := goalImageResult{}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		} else {
			img := res.Image
			entry.Image = &img
		}
		out[string(goal)] = entry
	}
	return out
}

func (s *Server) handleAnonymousGenerateAll(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	results, err := s.app.GenerateAll(r.Context(), auth.Anonymous(req.SessionID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGenerateAllResponse(results))
}

func (s *Server) handleGenerateAll(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	results, err := s.app.GenerateAll(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGenerateAllResponse(results))
}

func (s *Server) handleAnonymousResults(w http.ResponseWriter, r *http.Request) {
	rec, err := s.app.GetResults(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.FromAuthorizationHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.app.Migrate(r.Context(), req.SessionID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "migrated"})
}

// ---- Decide ----

type saveSnapshotRequest struct {
	OriginalImageRef string                `json:"original_image_ref"`
	Analysis         scan.Analysis         `json:"analysis"`
	GeneratedImages  []scan.GeneratedImage `json:"generated_images"`
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req saveSnapshotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.app.SaveSnapshot(r.Context(), id, req.OriginalImageRef, req.Analysis, req.GeneratedImages)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	rec, err := s.app.Suggest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type commitRequest struct {
	Path           string                  `json:"path"`
	Source         string                  `json:"source"`
	Recommendation *llm.PathRecommendation `json:"recommendation,omitempty"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req commitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dec, err := s.app.Commit(r.Context(), id, req.Path, decide.Source(req.Source), req.Recommendation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dec)
}

type stateResponse struct {
	Phase    string           `json:"phase"`
	Decision *decide.Decision `json:"decision"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	dec, current, err := s.app.State(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Phase: string(current), Decision: dec})
}

// ---- Act ----

type generatePlanRequest struct {
	Goal         string `json:"goal,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req generatePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	weekly, err := s.app.GeneratePlan(r.Context(), id, req.Goal, req.ForceRefresh)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}

type chatRequest struct {
	Message      string           `json:"message"`
	DayID        string           `json:"day_id"`
	PlanSnapshot *plan.WeeklyPlan `json:"plan_snapshot,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}
	result, err := s.app.Chat(r.Context(), id, req.Message, req.DayID, req.PlanSnapshot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type moveDayRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (s *Server) handleMoveDay(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req moveDayRequest
	if !decodeBody(w, r, &req) {
		return
	}
	weekly, err := s.app.MoveCard(r.Context(), id, req.From, req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	weekly, err := s.app.GetPlan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if weekly == nil {
		writeError(w, plan.ErrPlanNotFound)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}

// ---- Helpers ----

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scan.ErrSessionNotFound),
		errors.Is(err, plan.ErrPlanNotFound),
		errors.Is(err, decide.ErrNoSnapshot),
		errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, migration.ErrAlreadyMigrated):
		status = http.StatusConflict
	case errors.Is(err, scan.ErrUnknownGoal),
		errors.Is(err, observe.ErrAnalysisRequired),
		errors.Is(err, app.ErrSnapshotIncomplete),
		errors.Is(err, app.ErrDecisionRequired):
		status = http.StatusBadRequest
	case errors.Is(err, observe.ErrAnalysisFailed),
		errors.Is(err, observe.ErrGenerationFailed),
		errors.Is(err, plan.ErrGenerationFailed),
		errors.Is(err, plan.ErrChatFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		log.Printf("Warning: internal error: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
