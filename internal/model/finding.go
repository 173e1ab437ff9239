package model

// Severity classifies a finding. Errors block approval, warnings never do.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding codes, stable identifiers for report grouping.
const (
	CodeRequired         = "required"
	CodeFormat           = "format"
	CodeRange            = "range"
	CodeEnum             = "enum"
	CodeEitherOr         = "either_or"
	CodeDateOrder        = "date_order"
	CodeCompanyNotFound  = "company_not_found"
	CodeCompanyMismatch  = "company_mismatch"
	CodeBranchNotFound   = "branch_not_found"
	CodeExistingContract = "existing_contract"
	CodeDuplicateName    = "duplicate_name"
	CodeDuplicateID      = "duplicate_id"
	CodeDuplicateBranch  = "duplicate_branch"
	CodeUnknownCity      = "unknown_city"
	CodeNormalized       = "normalized"
)

// Finding is one validation result attached to a row.
type Finding struct {
	Row        int      `json:"row"`
	Field      string   `json:"field"`
	Value      string   `json:"value"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Severity   Severity `json:"severity"`
	Code       string   `json:"code,omitempty"`
}

// Key is the summary bucket label "<field>: <message>".
func (f Finding) Key() string {
	return f.Field + ": " + f.Message
}

// NormalizedValue is the result of normalizing one raw cell.
type NormalizedValue struct {
	Original   string   `json:"originalValue"`
	Normalized string   `json:"normalizedValue"`
	Warnings   []string `json:"warnings,omitempty"`
}
