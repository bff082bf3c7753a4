// Package api binds the services to the REST routes.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/familyfunds/internal/auth"
	"github.com/mmynk/familyfunds/internal/middleware"
	"github.com/mmynk/familyfunds/internal/service"
	"github.com/mmynk/familyfunds/internal/storage"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth     *service.AuthService
	Families *service.FamilyService
	Expenses *service.ExpenseService
	Goals    *service.GoalService

	JWT   *auth.JWTManager
	Users storage.UserStore

	// Realtime serves GET /ws. Optional.
	Realtime http.Handler

	AllowedOrigin string
}

type handler struct {
	auth     *service.AuthService
	families *service.FamilyService
	expenses *service.ExpenseService
	goals    *service.GoalService
}

// NewRouter returns the complete HTTP handler: routes, auth, logging,
// metrics, CORS and panic recovery.
func NewRouter(d Deps) http.Handler {
	h := &handler{
		auth:     d.Auth,
		families: d.Families,
		expenses: d.Expenses,
		goals:    d.Goals,
	}

	r := mux.NewRouter()
	r.Use(middleware.Logging)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	// Public
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	if d.Realtime != nil {
		// Authenticates itself before upgrading.
		r.Handle("/ws", d.Realtime).Methods(http.MethodGet)
	}

	// Authenticated
	a := r.NewRoute().Subrouter()
	a.Use(middleware.RequireAuth(d.JWT, d.Users))

	a.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)

	a.HandleFunc("/family-groups", h.createGroup).Methods(http.MethodPost)
	a.HandleFunc("/family-groups", h.listGroups).Methods(http.MethodGet)
	a.HandleFunc("/family-groups/join", h.joinGroup).Methods(http.MethodPost)
	a.HandleFunc("/family-groups/{id}", h.getGroup).Methods(http.MethodGet)
	a.HandleFunc("/family-groups/{id}", h.renameGroup).Methods(http.MethodPatch)
	a.HandleFunc("/family-groups/{id}", h.deleteGroup).Methods(http.MethodDelete)
	a.HandleFunc("/family-groups/{id}/members", h.inviteMember).Methods(http.MethodPost)
	a.HandleFunc("/family-groups/{groupId}/members/{memberId}", h.updateMemberRole).Methods(http.MethodPatch)
	a.HandleFunc("/family-groups/{groupId}/members/{memberId}", h.removeMember).Methods(http.MethodDelete)

	a.HandleFunc("/shared-expenses", h.createExpense).Methods(http.MethodPost)
	a.HandleFunc("/shared-expenses/{familyGroupId}", h.listExpenses).Methods(http.MethodGet)
	a.HandleFunc("/shared-expenses/{familyGroupId}/balances", h.balances).Methods(http.MethodGet)
	a.HandleFunc("/shared-expenses/{expenseId}/split", h.updateSplit).Methods(http.MethodPatch)
	a.HandleFunc("/shared-expenses/{expenseId}", h.deleteExpense).Methods(http.MethodDelete)

	a.HandleFunc("/goals", h.createGoal).Methods(http.MethodPost)
	a.HandleFunc("/goals/{familyGroupId}", h.listGoals).Methods(http.MethodGet)
	a.HandleFunc("/goals/{id}/contribute", h.contribute).Methods(http.MethodPatch)
	a.HandleFunc("/goals/{id}", h.deleteGoal).Methods(http.MethodDelete)

	return middleware.Recoverer(middleware.CORS(d.AllowedOrigin)(r))
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
