package domain

// Status is the readiness state shared by handovers and checks.
type Status string

const (
	StatusReady    Status = "Ready"
	StatusAtRisk   Status = "At Risk"
	StatusNotReady Status = "Not Ready"
)

// ApprovalState is the sign-off state of a check. Empty means the check
// does not require approval.
type ApprovalState string

const (
	ApprovalNone     ApprovalState = ""
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

type Handover struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type" enum:"cloud,product,legacy,human"`
	Description string   `json:"description,omitempty"`
	Lead        string   `json:"lead"`
	Owner       string   `json:"owner"`
	TargetDate  string   `json:"target_date,omitempty" format:"date"`
	Status      Status   `json:"status" enum:"Ready,At Risk,Not Ready"`
	Score       int      `json:"score" minimum:"0" maximum:"100"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
	Domains     []Domain `json:"domains,omitempty"`
}

type Domain struct {
	ID          int64   `json:"id"`
	HandoverID  int64   `json:"handover_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	SortOrder   int     `json:"sort_order"`
	Checks      []Check `json:"checks,omitempty"`
}

type Check struct {
	ID               int64         `json:"id"`
	DomainID         int64         `json:"domain_id"`
	Title            string        `json:"title"`
	Owner            string        `json:"owner,omitempty"`
	Status           Status        `json:"status" enum:"Ready,At Risk,Not Ready"`
	BlockerReason    string        `json:"blocker_reason,omitempty"`
	RequiresApproval bool          `json:"requires_approval"`
	ApprovalStatus   ApprovalState `json:"approval_status,omitempty" enum:"pending,approved,rejected"`
	SortOrder        int           `json:"sort_order"`
	CreatedAt        string        `json:"created_at" format:"date-time"`
	UpdatedAt        string        `json:"updated_at" format:"date-time"`
	Approvals        []Approval    `json:"approvals,omitempty"`
	Evidence         []Evidence    `json:"evidence,omitempty"`
}

type Approval struct {
	ID        int64  `json:"id"`
	CheckID   int64  `json:"check_id"`
	Approver  string `json:"approver"`
	Role      string `json:"role,omitempty"`
	Decision  string `json:"decision" enum:"approved,rejected"`
	Comments  string `json:"comments"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Evidence struct {
	ID            int64    `json:"id"`
	CheckID       int64    `json:"check_id"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Type          string   `json:"type" enum:"link,document,screenshot,video"`
	Description   string   `json:"description,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	FilePath      string   `json:"file_path,omitempty"`
	FileSize      int64    `json:"file_size,omitempty"`
	ThumbnailPath string   `json:"thumbnail_path,omitempty"`
	UploadedBy    string   `json:"uploaded_by"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
}

// DecisionRecord is a recorded go-live decision for a handover.
type DecisionRecord struct {
	ID              int64  `json:"id"`
	HandoverID      int64  `json:"handover_id"`
	Decision        string `json:"decision" enum:"GO_LIVE,GO_LIVE_RISK,NOT_READY"`
	Justification   string `json:"justification,omitempty"`
	RiskAcknowledged bool  `json:"risk_acknowledged,omitempty"`
	DecidedBy       string `json:"decided_by"`
	CreatedAt       string `json:"created_at" format:"date-time"`
}

// Actor identifies the authenticated principal performing an operation.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	HandoverID int64  `json:"handover_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// TemplateLibrary is a saved, reusable set of domains and checks.
type TemplateLibrary struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category,omitempty"`
	CreatedBy   string           `json:"created_by"`
	CreatedAt   string           `json:"created_at" format:"date-time"`
	Domains     []TemplateDomain `json:"domains,omitempty"`
}

type TemplateDomain struct {
	Title  string          `json:"title"`
	Checks []TemplateCheck `json:"checks"`
}

type TemplateCheck struct {
	Title            string `json:"title"`
	Owner            string `json:"owner,omitempty"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
}
