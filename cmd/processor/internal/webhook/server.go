package webhook

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/statushub"
	"github.com/FAbreu6/TP3-IS/pkg/models"
)

// Resolver consumes confirmation events.
type Resolver interface {
	Resolve(ctx context.Context, ev models.ConfirmationEvent)
}

// Server is the inbound confirmation channel: the downstream ingestion
// service posts webhook notifications here, concurrently with the poll loop.
type Server struct {
	resolver Resolver
	hub      *statushub.Hub
	logger   *zap.Logger
}

func NewServer(resolver Resolver, hub *statushub.Hub, logger *zap.Logger) *Server {
	return &Server{resolver: resolver, hub: hub, logger: logger}
}

type webhookReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/webhook", s.handleConfirmation)
	mux.HandleFunc("/health", s.handleHealth)
	if s.hub != nil {
		mux.HandleFunc("/ws", s.handleWS)
	}
	return mux
}

func (s *Server) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, webhookReply{Message: "POST required"})
		return
	}

	var ev models.ConfirmationEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, webhookReply{Message: "invalid JSON body"})
		return
	}

	if ev.CorrelationID == "" {
		writeJSON(w, http.StatusBadRequest, webhookReply{Message: "ID_Requisicao is required"})
		return
	}
	switch ev.Outcome {
	case models.OutcomeConfirmed, models.OutcomeValidationFailed, models.OutcomePersistenceFailed:
	default:
		writeJSON(w, http.StatusBadRequest, webhookReply{Message: "unrecognized Status value"})
		return
	}

	s.logger.Info("Webhook received",
		zap.String("correlation_id", ev.CorrelationID),
		zap.String("status", ev.Outcome))

	s.resolver.Resolve(r.Context(), ev)

	// 200 for any structurally valid body, unknown correlation ids included:
	// duplicates and post-expiry deliveries are the sender's normal case.
	writeJSON(w, http.StatusOK, webhookReply{Success: true, Message: "confirmation received"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "processor"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	client := statushub.NewClient(conn, s.hub, s.logger)
	client.Start()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
