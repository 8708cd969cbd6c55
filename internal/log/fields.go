package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldUserID        = "user_id"
	FieldCardID        = "card_id"
	FieldProgramID     = "program_id"
	FieldGoalID        = "goal_id"
	FieldTransactionID = "transaction_id"
	FieldCategory      = "category"
	FieldMonth         = "month"
	FieldAmountCents   = "amount_cents"
	FieldMiles         = "miles"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentRefdata = "refdata"
	ComponentAdvisor = "advisor"
	ComponentLedger  = "ledger"
	ComponentGoals   = "goals"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpDelete   = "delete"
	OpList     = "list"
	OpImport   = "import"
	OpCheck    = "check"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
