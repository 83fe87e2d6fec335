package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/vatbq/lia/internal/domain/entities"
	"github.com/vatbq/lia/pkg/ai"
	"github.com/vatbq/lia/pkg/validator"
)

type fakeCallStore struct {
	calls map[string]*entities.CallRecord
}

func newFakeCallStore() *fakeCallStore {
	return &fakeCallStore{calls: make(map[string]*entities.CallRecord)}
}

func (f *fakeCallStore) CreateCall(ctx context.Context, call *entities.CallRecord) error {
	f.calls[call.ID] = call
	return nil
}

func (f *fakeCallStore) GetCallByID(ctx context.Context, callID string) (*entities.CallRecord, error) {
	return f.calls[callID], nil
}

func (f *fakeCallStore) ListCalls(ctx context.Context) ([]entities.CallRecord, error) {
	out := make([]entities.CallRecord, 0, len(f.calls))
	for _, call := range f.calls {
		out = append(out, *call)
	}
	return out, nil
}

func (f *fakeCallStore) DeleteCall(ctx context.Context, callID string) error {
	delete(f.calls, callID)
	return nil
}

type fakeClarifier struct {
	plan *ai.ClarifiedPlan
	err  error
}

func (f *fakeClarifier) ClarifyObjectives(ctx context.Context, callContext, objectives string) (*ai.ClarifiedPlan, error) {
	return f.plan, f.err
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validator.New()
	return e
}

func TestCreateCallClarifiesObjectives(t *testing.T) {
	e := newTestEcho()
	store := newFakeCallStore()
	h := NewCallHandler(store, &fakeClarifier{plan: &ai.ClarifiedPlan{
		Objectives: []ai.ClarifiedObjective{
			{Name: "Agree on budget", Description: "Get a number on the table", Priority: 1},
			{Name: "Set timeline", Priority: 2},
		},
		Constraints: []string{"30 minutes"},
		Risks:       []string{"decision maker might not attend"},
	}}, nil)

	body := `{"name":"Quarterly sync","context":"Budget call","objectives":"talk budget and timeline"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/calls", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateCall(c); err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data entities.CallRecord `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Data.ParsedObjectives) != 2 {
		t.Fatalf("expected 2 objectives, got %d", len(resp.Data.ParsedObjectives))
	}
	if resp.Data.ParsedObjectives[0].Title != "Agree on budget" {
		t.Errorf("objective title = %q", resp.Data.ParsedObjectives[0].Title)
	}
	if len(resp.Data.Constraints) != 1 || len(resp.Data.Risks) != 1 {
		t.Errorf("constraints/risks not stored")
	}
	if _, ok := store.calls[resp.Data.ID]; !ok {
		t.Error("call not persisted")
	}
}

func TestCreateCallRequiresObjectives(t *testing.T) {
	e := newTestEcho()
	h := NewCallHandler(newFakeCallStore(), &fakeClarifier{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/calls", strings.NewReader(`{"name":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.CreateCall(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateCallClarificationFailure(t *testing.T) {
	e := newTestEcho()
	h := NewCallHandler(newFakeCallStore(), &fakeClarifier{err: errors.New("model timeout")}, nil)

	body := `{"name":"Sync","objectives":"talk"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/calls", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.CreateCall(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadGateway && rec.Code != http.StatusInternalServerError && rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestGetCallNotFound(t *testing.T) {
	e := newTestEcho()
	h := NewCallHandler(newFakeCallStore(), &fakeClarifier{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/calls/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	if err := h.GetCall(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteCall(t *testing.T) {
	e := newTestEcho()
	store := newFakeCallStore()
	call := entities.NewCallRecord("Sync", "", "objectives")
	store.calls[call.ID] = call
	h := NewCallHandler(store, &fakeClarifier{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/v1/calls/"+call.ID, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(call.ID)

	if err := h.DeleteCall(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := store.calls[call.ID]; ok {
		t.Fatal("call not deleted")
	}
}
