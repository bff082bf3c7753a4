package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mmynk/familyfunds/internal/middleware"
)

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.auth.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": middleware.GetUser(r.Context())})
}

// Family groups

func (h *handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	group, err := h.families.CreateGroup(r.Context(), middleware.GetUserID(r.Context()), req.Name, req.Currency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"family": group})
}

func (h *handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.families.ListGroups(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"families": groups})
}

func (h *handler) getGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.families.GetGroup(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"family": group})
}

func (h *handler) renameGroup(w http.ResponseWriter, r *http.Request) {
	var req renameGroupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	group, err := h.families.RenameGroup(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"], req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"family": group})
}

func (h *handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.families.DeleteGroup(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) inviteMember(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.families.InviteMember(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"], req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invitation": inv})
}

func (h *handler) joinGroup(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	group, err := h.families.JoinGroup(r.Context(), middleware.GetUserID(r.Context()), req.FamilyID, req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"family": group})
}

func (h *handler) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	group, err := h.families.UpdateMemberRole(r.Context(), middleware.GetUserID(r.Context()), vars["groupId"], vars["memberId"], req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"family": group})
}

func (h *handler) removeMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.families.RemoveMember(r.Context(), middleware.GetUserID(r.Context()), vars["groupId"], vars["memberId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Shared expenses

func (h *handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	expense, err := h.expenses.CreateSharedExpense(r.Context(), middleware.GetUserID(r.Context()), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
}

func (h *handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.expenses.ListSharedExpenses(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["familyGroupId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (h *handler) balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.expenses.GetBalances(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["familyGroupId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *handler) updateSplit(w http.ResponseWriter, r *http.Request) {
	var req updateSplitRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	expense, err := h.expenses.UpdateSplitStatus(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["expenseId"], req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": expense})
}

func (h *handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := h.expenses.DeleteSharedExpense(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["expenseId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Goals

func (h *handler) createGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := h.goals.CreateGoal(r.Context(), middleware.GetUserID(r.Context()), req.FamilyGroupID, req.Name, *req.TargetAmount, req.Deadline)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"goal": goal})
}

func (h *handler) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goals.ListGoals(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["familyGroupId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

func (h *handler) contribute(w http.ResponseWriter, r *http.Request) {
	var req contributeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := h.goals.Contribute(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"], *req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goal": goal})
}

func (h *handler) deleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.goals.DeleteGoal(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
