// Package app initializes and wires the application: Genkit with the
// configured AI provider, the PostgreSQL pool with pgvector, the semantic
// index, sessions, tools, and the answering system.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyowl/studyowl/internal/config"
	"github.com/studyowl/studyowl/internal/index"
	"github.com/studyowl/studyowl/internal/log"
	"github.com/studyowl/studyowl/internal/rag"
	"github.com/studyowl/studyowl/internal/session"
	"github.com/studyowl/studyowl/internal/transcript"
)

// App is the application container. Build one with Setup and release it
// with Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Index     *index.Store
	Sessions  *session.Store
	Processor *transcript.Processor
	System    *rag.System

	otelCleanup func()
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	a.Logger.Info("shutting down")
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
