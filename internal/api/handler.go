package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"fieldservice-backend/internal/gateway"
	"fieldservice-backend/internal/journal"
	"fieldservice-backend/internal/store"
	"fieldservice-backend/internal/transport"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   *store.Store
	gateway *gateway.Gateway
	session *transport.Session
	journal *journal.Journal
	db      *gorm.DB
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s *store.Store, g *gateway.Gateway, session *transport.Session, j *journal.Journal, db *gorm.DB, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		gateway: g,
		session: session,
		journal: j,
		db:      db,
		webpush: webpushOptions,
	}
}
