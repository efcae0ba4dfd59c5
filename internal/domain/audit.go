package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an append-only record of a privileged action. Rows are never
// mutated by this service; retention and downstream processing are external.
type AuditEntry struct {
	ID        int64           `json:"id"`
	Action    string          `json:"action"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty"` // nil for unauthenticated flows
	Target    string          `json:"target"`
	Details   json.RawMessage `json:"details"`
	IPAddress string          `json:"ip_address"`
	SchoolID  *uuid.UUID      `json:"school_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Audit action names, mirrored by the kafka topic suffix.
const (
	AuditRegister       = "register"
	AuditLogin          = "login"
	AuditLogout         = "logout"
	AuditForgotPassword = "forgotPassword"
	AuditResetPassword  = "resetPassword"
	AuditChangePassword = "changePassword"
	AuditUpdateProfile  = "updateProfile"
	AuditCreateAdmin    = "createAdmin"
	AuditUpdateAdmin    = "updateAdmin"
	AuditDeleteAdmin    = "deleteAdmin"
	AuditSetup2FA       = "setup2FA"
	AuditVerify2FA      = "verify2FA"
)
