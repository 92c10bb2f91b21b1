package audit

// Event names recorded in the audit log.
const (
	EventLogin          = "login"
	EventLoginFailed    = "login_failed"
	EventLoginThrottled = "login_throttled"
	EventLogout         = "logout"
	EventOrderOpen      = "order_open"
	EventPrint          = "print"
)

// Outcomes of an audited event.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Entry is one line in the hash-chained JSONL audit log.
// All fields are plain values (no map[string]any) to guarantee
// deterministic json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp  string `json:"ts"`
	StationID  string `json:"station_id"`
	SessionID  string `json:"session_id,omitempty"`
	Event      string `json:"event"`
	Operator   string `json:"operator,omitempty"`
	Order      string `json:"order,omitempty"`
	Product    string `json:"product,omitempty"`
	Serial     string `json:"serial,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
	ConfigHash string `json:"config_hash"`
	PrevHash   string `json:"prev_hash"`
}
