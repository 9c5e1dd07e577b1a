package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/orchestrator"
)

// App bundles handler dependencies.
type App struct {
	Orchestrator *orchestrator.Service
	Logger       zerolog.Logger
}

func NewApp(orc *orchestrator.Service, logger zerolog.Logger) *App {
	return &App{Orchestrator: orc, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}
