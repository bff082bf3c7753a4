package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/familyfunds/internal/auth"
	"github.com/mmynk/familyfunds/internal/models"
	"github.com/mmynk/familyfunds/internal/notify"
	"github.com/mmynk/familyfunds/internal/service"
	"github.com/mmynk/familyfunds/internal/storage/sqlite"
)

type outbox struct {
	mu   sync.Mutex
	sent []notify.InvitationMessage
}

func (o *outbox) SendInvitation(_ context.Context, msg notify.InvitationMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		t.Fatal("no invitation was sent")
	}
	return o.sent[len(o.sent)-1].Token
}

type testServer struct {
	*httptest.Server
	mail *outbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mail := &outbox{}
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)

	router := NewRouter(Deps{
		Auth:          service.NewAuthService(authenticator, jwtManager, store, nil),
		Families:      service.NewFamilyService(store, mail, nil),
		Expenses:      service.NewExpenseService(store, nil),
		Goals:         service.NewGoalService(store, nil),
		JWT:           jwtManager,
		Users:         store,
		AllowedOrigin: "*",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, mail: mail}
}

// do sends body as JSON and decodes the response into out when out is non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type sessionResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

func (s *testServer) register(t *testing.T, email, name string) sessionResponse {
	t.Helper()
	var out sessionResponse
	status := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":       email,
		"password":    "correct-horse",
		"displayName": name,
	}, &out)
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, status)
	}
	return out
}

type familyResponse struct {
	Family models.FamilyGroup `json:"family"`
}

type expenseResponse struct {
	Expense models.SharedExpense `json:"expense"`
}

type goalResponse struct {
	Goal models.Goal `json:"goal"`
}

type errorBody struct {
	Error string `json:"error"`
}

// family registers Alice and Bob, has Alice create a group and brings Bob in
// through an emailed invitation.
func (s *testServer) family(t *testing.T) (alice, bob sessionResponse, group models.FamilyGroup) {
	t.Helper()

	alice = s.register(t, "alice@example.com", "Alice")
	bob = s.register(t, "bob@example.com", "Bob")

	var created familyResponse
	if status := s.do(t, http.MethodPost, "/family-groups", alice.Token,
		map[string]string{"name": "Smiths"}, &created); status != http.StatusCreated {
		t.Fatalf("create group: status %d", status)
	}

	if status := s.do(t, http.MethodPost, "/family-groups/"+created.Family.ID+"/members", alice.Token,
		map[string]string{"email": "bob@example.com"}, nil); status != http.StatusCreated {
		t.Fatalf("invite: status %d", status)
	}

	var joined familyResponse
	if status := s.do(t, http.MethodPost, "/family-groups/join", bob.Token, map[string]string{
		"token":    s.mail.lastToken(t),
		"familyId": created.Family.ID,
	}, &joined); status != http.StatusOK {
		t.Fatalf("join: status %d", status)
	}
	return alice, bob, joined.Family
}

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	var health map[string]string
	if status := s.do(t, http.MethodGet, "/healthz", "", nil, &health); status != http.StatusOK || health["status"] != "ok" {
		t.Errorf("healthz: status %d body %v", status, health)
	}

	var body errorBody
	if status := s.do(t, http.MethodGet, "/nope", "", nil, &body); status != http.StatusNotFound || body.Error == "" {
		t.Errorf("unknown route: status %d body %+v", status, body)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice@Example.com", "Alice")

	if alice.Token == "" || alice.User.Email != "alice@example.com" {
		t.Fatalf("unexpected session: %+v", alice)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{name: "duplicate email", method: http.MethodPost, path: "/auth/register",
			body: map[string]string{"email": "alice@example.com", "password": "another-pass", "displayName": "A"}, want: http.StatusConflict},
		{name: "short password", method: http.MethodPost, path: "/auth/register",
			body: map[string]string{"email": "bob@example.com", "password": "short", "displayName": "Bob"}, want: http.StatusBadRequest},
		{name: "missing field", method: http.MethodPost, path: "/auth/register",
			body: map[string]string{"email": "bob@example.com", "password": "long-enough"}, want: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/auth/login",
			body: `{"email":"alice@example.com","password":"correct-horse","admin":true}`, want: http.StatusBadRequest},
		{name: "trailing data", method: http.MethodPost, path: "/auth/login",
			body: `{"email":"alice@example.com","password":"correct-horse"}{}`, want: http.StatusBadRequest},
		{name: "wrong password", method: http.MethodPost, path: "/auth/login",
			body: map[string]string{"email": "alice@example.com", "password": "wrong-horse"}, want: http.StatusUnauthorized},
		{name: "login", method: http.MethodPost, path: "/auth/login",
			body: map[string]string{"email": "alice@example.com", "password": "correct-horse"}, want: http.StatusOK},
		{name: "me without token", method: http.MethodGet, path: "/auth/me", want: http.StatusUnauthorized},
		{name: "me with garbage token", method: http.MethodGet, path: "/auth/me", token: "garbage", want: http.StatusUnauthorized},
		{name: "me", method: http.MethodGet, path: "/auth/me", token: alice.Token, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.do(t, tt.method, tt.path, tt.token, tt.body, nil); got != tt.want {
				t.Errorf("status: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFamilyGroupRoutes(t *testing.T) {
	s := newTestServer(t)
	alice, bob, group := s.family(t)
	carol := s.register(t, "carol@example.com", "Carol")

	if len(group.Members) != 2 {
		t.Fatalf("expected 2 members after join, got %+v", group.Members)
	}
	for _, m := range group.Members {
		if m.Status != models.MemberActive {
			t.Errorf("member %s should be active, got %s", m.UserID, m.Status)
		}
	}

	var listed struct {
		Families []models.FamilyGroup `json:"families"`
	}
	if status := s.do(t, http.MethodGet, "/family-groups", bob.Token, nil, &listed); status != http.StatusOK || len(listed.Families) != 1 {
		t.Fatalf("list: status %d families %d", status, len(listed.Families))
	}

	base := "/family-groups/" + group.ID
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{name: "outsider cannot read", method: http.MethodGet, path: base, token: carol.Token, want: http.StatusForbidden},
		{name: "missing group", method: http.MethodGet, path: "/family-groups/missing", token: alice.Token, want: http.StatusNotFound},
		{name: "member cannot rename", method: http.MethodPatch, path: base, token: bob.Token,
			body: map[string]string{"name": "Bobs"}, want: http.StatusForbidden},
		{name: "owner renames", method: http.MethodPatch, path: base, token: alice.Token,
			body: map[string]string{"name": "Smith Family"}, want: http.StatusOK},
		{name: "invite existing member", method: http.MethodPost, path: base + "/members", token: alice.Token,
			body: map[string]string{"email": "bob@example.com"}, want: http.StatusConflict},
		{name: "invite bad email", method: http.MethodPost, path: base + "/members", token: alice.Token,
			body: map[string]string{"email": "not-an-email"}, want: http.StatusBadRequest},
		{name: "outsider cannot invite", method: http.MethodPost, path: base + "/members", token: carol.Token,
			body: map[string]string{"email": "dave@example.com"}, want: http.StatusForbidden},
		{name: "bogus invitation token", method: http.MethodPost, path: "/family-groups/join", token: carol.Token,
			body: map[string]string{"token": "bogus", "familyId": group.ID}, want: http.StatusBadRequest},
		{name: "member cannot change roles", method: http.MethodPatch, path: base + "/members/" + alice.User.ID, token: bob.Token,
			body: map[string]string{"role": "member"}, want: http.StatusForbidden},
		{name: "owner promotes", method: http.MethodPatch, path: base + "/members/" + bob.User.ID, token: alice.Token,
			body: map[string]string{"role": "admin"}, want: http.StatusOK},
		{name: "member cannot delete group", method: http.MethodDelete, path: base, token: bob.Token, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.do(t, tt.method, tt.path, tt.token, tt.body, nil); got != tt.want {
				t.Errorf("status: got %d, want %d", got, tt.want)
			}
		})
	}

	if status := s.do(t, http.MethodDelete, base+"/members/"+bob.User.ID, alice.Token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("remove member: status %d", status)
	}
	if status := s.do(t, http.MethodGet, base, bob.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("removed member should lose access, got %d", status)
	}

	if status := s.do(t, http.MethodDelete, base, alice.Token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete group: status %d", status)
	}
	if status := s.do(t, http.MethodGet, base, alice.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("deleted group should be gone, got %d", status)
	}
}

func TestSharedExpenseRoutes(t *testing.T) {
	s := newTestServer(t)
	alice, bob, group := s.family(t)

	var created expenseResponse
	status := s.do(t, http.MethodPost, "/shared-expenses", alice.Token, map[string]any{
		"familyGroupId": group.ID,
		"amount":        "60",
		"category":      "groceries",
		"description":   "Weekly shop",
		"splitType":     "equal",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create expense: status %d", status)
	}
	expense := created.Expense
	if expense.PaidBy != alice.User.ID || len(expense.Splits) != 2 {
		t.Fatalf("unexpected expense: %+v", expense)
	}
	for _, sp := range expense.Splits {
		if !sp.Amount.Equal(decimal.NewFromInt(30)) || sp.Status != models.SplitPending {
			t.Errorf("split for %s: %s %s", sp.UserID, sp.Amount, sp.Status)
		}
	}

	var balances service.GroupBalances
	if status := s.do(t, http.MethodGet, "/shared-expenses/"+group.ID+"/balances", bob.Token, nil, &balances); status != http.StatusOK {
		t.Fatalf("balances: status %d", status)
	}
	if len(balances.Debts) != 1 || balances.Debts[0].From != bob.User.ID || balances.Debts[0].Display != "$30.00" {
		t.Errorf("unexpected debts: %+v", balances.Debts)
	}

	badRequests := []struct {
		name string
		body any
		want int
	}{
		{name: "missing amount", body: map[string]any{"familyGroupId": group.ID, "category": "x", "splitType": "equal"}, want: http.StatusBadRequest},
		{name: "negative amount", body: map[string]any{"familyGroupId": group.ID, "amount": "-5", "category": "x", "splitType": "equal"}, want: http.StatusBadRequest},
		{name: "unknown split type", body: map[string]any{"familyGroupId": group.ID, "amount": "5", "category": "x", "splitType": "weighted"}, want: http.StatusBadRequest},
		{name: "percentages off", body: map[string]any{
			"familyGroupId": group.ID, "amount": "100", "category": "x", "splitType": "percentage",
			"splits": []map[string]any{
				{"userId": alice.User.ID, "percentage": "50"},
				{"userId": bob.User.ID, "percentage": "40"},
			},
		}, want: http.StatusBadRequest},
		{name: "missing group", body: map[string]any{"familyGroupId": "missing", "amount": "5", "category": "x", "splitType": "equal"}, want: http.StatusNotFound},
	}
	for _, tt := range badRequests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.do(t, http.MethodPost, "/shared-expenses", alice.Token, tt.body, nil); got != tt.want {
				t.Errorf("status: got %d, want %d", got, tt.want)
			}
		})
	}

	var updated expenseResponse
	if status := s.do(t, http.MethodPatch, "/shared-expenses/"+expense.ID+"/split", bob.Token,
		map[string]string{"status": "paid"}, &updated); status != http.StatusOK {
		t.Fatalf("update split: status %d", status)
	}
	for _, sp := range updated.Expense.Splits {
		want := models.SplitPending
		if sp.UserID == bob.User.ID {
			want = models.SplitPaid
		}
		if sp.Status != want {
			t.Errorf("split for %s: got %s, want %s", sp.UserID, sp.Status, want)
		}
	}

	if status := s.do(t, http.MethodPatch, "/shared-expenses/"+expense.ID+"/split", bob.Token,
		map[string]string{"status": "settled"}, nil); status != http.StatusBadRequest {
		t.Errorf("invalid status: got %d", status)
	}

	balances = service.GroupBalances{}
	s.do(t, http.MethodGet, "/shared-expenses/"+group.ID+"/balances", alice.Token, nil, &balances)
	if len(balances.Debts) != 0 {
		t.Errorf("paid split should settle the debt: %+v", balances.Debts)
	}

	var listed struct {
		Expenses []models.SharedExpense `json:"expenses"`
	}
	if status := s.do(t, http.MethodGet, "/shared-expenses/"+group.ID, bob.Token, nil, &listed); status != http.StatusOK || len(listed.Expenses) != 1 {
		t.Fatalf("list expenses: status %d count %d", status, len(listed.Expenses))
	}

	if status := s.do(t, http.MethodDelete, "/shared-expenses/"+expense.ID, bob.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("plain member should not delete another's expense, got %d", status)
	}
	if status := s.do(t, http.MethodDelete, "/shared-expenses/"+expense.ID, alice.Token, nil, nil); status != http.StatusNoContent {
		t.Errorf("payer delete: got %d", status)
	}
}

func TestGoalRoutes(t *testing.T) {
	s := newTestServer(t)
	alice, bob, group := s.family(t)

	var created goalResponse
	if status := s.do(t, http.MethodPost, "/goals", alice.Token, map[string]any{
		"familyGroupId": group.ID,
		"name":          "Vacation",
		"targetAmount":  "1000",
	}, &created); status != http.StatusCreated {
		t.Fatalf("create goal: status %d", status)
	}
	goal := created.Goal
	if goal.Status != models.GoalInProgress || !goal.CurrentAmount.IsZero() {
		t.Fatalf("unexpected goal: %+v", goal)
	}

	path := "/goals/" + goal.ID + "/contribute"
	if status := s.do(t, http.MethodPatch, path, bob.Token, map[string]string{"amount": "0"}, nil); status != http.StatusBadRequest {
		t.Errorf("zero contribution: got %d", status)
	}
	if status := s.do(t, http.MethodPatch, "/goals/missing/contribute", bob.Token, map[string]string{"amount": "5"}, nil); status != http.StatusNotFound {
		t.Errorf("missing goal: got %d", status)
	}

	var updated goalResponse
	s.do(t, http.MethodPatch, path, alice.Token, map[string]string{"amount": "400"}, nil)
	if status := s.do(t, http.MethodPatch, path, bob.Token, map[string]string{"amount": "600"}, &updated); status != http.StatusOK {
		t.Fatalf("contribute: status %d", status)
	}
	if !updated.Goal.CurrentAmount.Equal(decimal.NewFromInt(1000)) || updated.Goal.Status != models.GoalCompleted {
		t.Errorf("goal after contributions: %s %s", updated.Goal.CurrentAmount, updated.Goal.Status)
	}
	if len(updated.Goal.Contributions) != 2 {
		t.Errorf("expected 2 contributions, got %d", len(updated.Goal.Contributions))
	}

	var listed struct {
		Goals []models.Goal `json:"goals"`
	}
	if status := s.do(t, http.MethodGet, "/goals/"+group.ID, bob.Token, nil, &listed); status != http.StatusOK || len(listed.Goals) != 1 {
		t.Fatalf("list goals: status %d count %d", status, len(listed.Goals))
	}

	if status := s.do(t, http.MethodDelete, "/goals/"+goal.ID, bob.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("plain member delete: got %d", status)
	}
	if status := s.do(t, http.MethodDelete, "/goals/"+goal.ID, alice.Token, nil, nil); status != http.StatusNoContent {
		t.Errorf("owner delete: got %d", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, s.URL+"/family-groups", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status: got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("allow headers: %q", got)
	}
}
