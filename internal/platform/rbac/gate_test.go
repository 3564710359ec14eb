package rbac

import (
	"context"
	"errors"
	"testing"

	"insurance-management/backend/internal/audit"
	"insurance-management/backend/internal/session/domain"
)

type recordingAuditor struct {
	events  []string
	details []map[string]any
}

func (r *recordingAuditor) LogActivity(ctx context.Context, userID int64, activityType, description, ipAddress string, details map[string]any) {
	r.events = append(r.events, activityType)
	r.details = append(r.details, details)
}

func view(userID, role string) domain.View {
	return domain.View{UserID: userID, Role: role, SessionID: "sess-1"}
}

func TestAuthorize_AdminAlwaysPasses(t *testing.T) {
	g := NewGate(nil, nil, nil)

	if err := g.Authorize(context.Background(), view("1", "admin"), "contracts:delete", "ke_toan"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
}

func TestAuthorize_RequiredRolePasses(t *testing.T) {
	g := NewGate(nil, nil, nil)

	err := g.Authorize(context.Background(), view("42", "nguoi_lap_hop_dong"), "contracts:create",
		"nguoi_lap_hop_dong", "giam_sat")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
}

func TestAuthorize_DenialIsAudited(t *testing.T) {
	aud := &recordingAuditor{}
	g := NewGate(nil, aud, nil)

	err := g.Authorize(context.Background(), view("42", "nguoi_duoc_bao_hiem"), "contracts:create", "nguoi_lap_hop_dong")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if len(aud.events) != 1 || aud.events[0] != audit.TypePermissionDenied {
		t.Fatalf("audit events = %v", aud.events)
	}
	// The event names both the denied role and the full required set.
	details := aud.details[0]
	if details["role"] != "nguoi_duoc_bao_hiem" {
		t.Errorf("denied role = %v", details["role"])
	}
	req, ok := details["required"].([]string)
	if !ok || len(req) != 1 || req[0] != "nguoi_lap_hop_dong" {
		t.Errorf("required set = %v (%T)", details["required"], details["required"])
	}
}

type fixedChecker struct {
	verdict bool
	err     error
	input   map[string]any
}

func (f *fixedChecker) Allowed(ctx context.Context, input map[string]any) (bool, error) {
	f.input = input
	return f.verdict, f.err
}

func TestAuthorize_PolicyVerdictReplacesRoleCheck(t *testing.T) {
	g := NewGate(&fixedChecker{verdict: false}, nil, nil)

	// Role list would allow this, but the policy says no.
	err := g.Authorize(context.Background(), view("42", "ke_toan"), "payments:read", "ke_toan")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	// And vice versa: the policy can grant what the role list would not.
	g = NewGate(&fixedChecker{verdict: true}, nil, nil)
	if err := g.Authorize(context.Background(), view("42", "ke_toan"), "contracts:create", "nguoi_lap_hop_dong"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
}

func TestAuthorize_PolicyErrorFallsBackToRoles(t *testing.T) {
	fc := &fixedChecker{err: errors.New("policy engine down")}
	g := NewGate(fc, nil, nil)

	if err := g.Authorize(context.Background(), view("42", "ke_toan"), "payments:read", "ke_toan"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if fc.input["resource"] != "payments:read" {
		t.Errorf("policy input = %v", fc.input)
	}
}

func TestOPAChecker_DefaultPolicy(t *testing.T) {
	c, err := NewOPAChecker(context.Background(), "")
	if err != nil {
		t.Fatalf("NewOPAChecker: %v", err)
	}

	cases := []struct {
		role     string
		required []string
		want     bool
	}{
		{"admin", nil, true},
		{"ke_toan", []string{"ke_toan"}, true},
		{"ke_toan", []string{"giam_sat"}, false},
		{"nguoi_duoc_bao_hiem", nil, false},
	}
	for _, tc := range cases {
		got, err := c.Allowed(context.Background(), map[string]any{
			"role":     tc.role,
			"required": tc.required,
		})
		if err != nil {
			t.Fatalf("Allowed(%s): %v", tc.role, err)
		}
		if got != tc.want {
			t.Errorf("Allowed(%s, %v) = %v, want %v", tc.role, tc.required, got, tc.want)
		}
	}
}

func TestOPAChecker_CustomPolicy(t *testing.T) {
	const policy = `package insurance.authz

default allow := false

allow if {
	input.resource == "contracts:read"
	input.role == "giam_sat"
}
`
	c, err := NewOPAChecker(context.Background(), policy)
	if err != nil {
		t.Fatalf("NewOPAChecker: %v", err)
	}

	ok, err := c.Allowed(context.Background(), map[string]any{"role": "giam_sat", "resource": "contracts:read"})
	if err != nil || !ok {
		t.Fatalf("Allowed = %v, %v", ok, err)
	}
	ok, err = c.Allowed(context.Background(), map[string]any{"role": "admin", "resource": "contracts:read"})
	if err != nil || ok {
		t.Fatalf("custom policy should not grant admin here: %v, %v", ok, err)
	}
}

func TestOPAChecker_BadPolicyIsRejected(t *testing.T) {
	if _, err := NewOPAChecker(context.Background(), "package broken\n\nallow if {"); err == nil {
		t.Fatal("NewOPAChecker should reject unparseable Rego")
	}
}

type fixedSource struct {
	policy string
	err    error
}

func (f *fixedSource) AuthorizationPolicy(ctx context.Context) (string, error) {
	return f.policy, f.err
}

func TestNewOPACheckerFromSource_FailureUsesDefault(t *testing.T) {
	c, err := NewOPACheckerFromSource(context.Background(), &fixedSource{err: errors.New("no policy table")})
	if err != nil {
		t.Fatalf("NewOPACheckerFromSource: %v", err)
	}
	ok, err := c.Allowed(context.Background(), map[string]any{"role": "admin"})
	if err != nil || !ok {
		t.Fatalf("default policy should allow admin: %v, %v", ok, err)
	}
}
