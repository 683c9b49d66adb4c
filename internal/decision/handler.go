package decision

import (
	"net/http"

	"github.com/slotleaf/booking-platform/pkg/logging"
)

// Handler serves the decision links embedded in coach invite emails.
type Handler struct {
	resolver *Resolver
	logger   *logging.Logger
}

// NewHandler creates a decision handler.
func NewHandler(resolver *Resolver, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{resolver: resolver, logger: logger}
}

// HandleDecision handles GET /decisions?token=..&d=accept|decline. The
// outcome page is stable across repeated invocations of the same link.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		renderOutcomePage(w, OutcomeTokenUnknown)
		return
	}

	var action Action
	switch r.URL.Query().Get("d") {
	case "accept":
		action = ActionAccept
	case "decline":
		action = ActionDecline
	default:
		http.Error(w, "invalid decision", http.StatusBadRequest)
		return
	}

	result, err := h.resolver.Resolve(r.Context(), token, action)
	if err != nil {
		h.logger.Error("decision resolution failed", "error", err, "action", action)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	renderOutcomePage(w, result.Outcome)
}
