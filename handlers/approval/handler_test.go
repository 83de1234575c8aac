package approval

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/model"
	"github.com/tahirov/eduadmin-api/services"
)

// testApp wires the handler's routes without any backing services so the
// tests below only pass when the guards return before a service is touched.
func testApp(h *ApprovalHandler, user *model.User) *fiber.App {
	app := fiber.New()
	if user != nil {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("user", user)
			return c.Next()
		})
	}
	app.Get("/approvals", h.List)
	app.Get("/approvals/pending", h.ListPending)
	app.Get("/approvals/:id", h.Get)
	app.Get("/approvals/:id/trail", h.Trail)
	app.Post("/approvals/:id/submit", h.Submit)
	app.Post("/approvals/:id/approve", h.Approve)
	return app
}

func TestScopedReadsRequireAuthentication(t *testing.T) {
	h := NewApprovalHandler(nil, nil, nil, nil)
	app := testApp(h, nil)

	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/approvals"},
		{"GET", "/approvals/pending"},
		{"GET", "/approvals/5"},
		{"GET", "/approvals/5/trail"},
		{"POST", "/approvals/5/submit"},
		{"POST", "/approvals/5/approve"},
	}

	for _, route := range routes {
		resp, err := app.Test(httptest.NewRequest(route.method, route.path, nil))
		if err != nil {
			t.Fatalf("%s %s: %v", route.method, route.path, err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("%s %s: expected 401 without a user, got %d", route.method, route.path, resp.StatusCode)
		}
	}
}

func TestActionsRejectMalformedID(t *testing.T) {
	h := NewApprovalHandler(nil, nil, nil, nil)
	institutionID := uint(10)
	user := &model.User{ID: 1, Role: model.RoleSchoolAdmin, InstitutionID: &institutionID}
	app := testApp(h, user)

	for _, path := range []string{"/approvals/abc/submit", "/approvals/abc/approve"} {
		resp, err := app.Test(httptest.NewRequest("POST", path, nil))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("POST %s: expected 400 for malformed id, got %d", path, resp.StatusCode)
		}
	}
}

func TestServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not authenticated", errNotAuthenticated, fiber.StatusUnauthorized},
		{"unresolvable scope", services.ErrUnresolvableScope, fiber.StatusForbidden},
		{"access denied", services.ErrAccessDenied, fiber.StatusForbidden},
		{"not authorized approver", services.ErrNotAuthorizedApprover, fiber.StatusForbidden},
		{"not found", services.ErrNotFound, fiber.StatusNotFound},
		{"invalid transition", services.ErrInvalidTransition, fiber.StatusConflict},
		{"concurrent modification", services.ErrConcurrentModification, fiber.StatusConflict},
		{"batch too large", services.ErrBatchTooLarge, fiber.StatusBadRequest},
		{"validation", services.ErrValidation, fiber.StatusBadRequest},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/fail", func(c *fiber.Ctx) error {
				return serviceError(c, tc.err)
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, resp.StatusCode)
			}

			var body struct {
				Success bool `json:"success"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Success {
				t.Error("expected success=false in error envelope")
			}
		})
	}
}
