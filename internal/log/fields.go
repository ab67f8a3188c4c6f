package log

import (
	"uangku/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorKind   = "error_kind"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldTxID        = "transaction_id"
	FieldTxKind      = "kind"
	FieldAmount      = "amount"
	FieldCategory    = "category_id"
	FieldDate        = "date"
	FieldCommand     = "command"
	FieldPosition    = "position"
	FieldHistorySize = "history_size"
	FieldBudgetID    = "budget_id"
	FieldPercent     = "percent"
	FieldTier        = "tier"
	FieldAttempt     = "attempt"
	FieldQueue       = "queue"
)

// Component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentHistory = "history"
	ComponentNotify  = "notify"
	ComponentStorage = "storage"
	ComponentRemote  = "remote"
	ComponentSheets  = "sheets"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentCache   = "cache"
	ComponentBackend = "backend"
)

// Operation names
const (
	OpSave     = "save"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpUndo     = "undo"
	OpRedo     = "redo"
	OpBatch    = "batch"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message and its kind.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorKind] = core.ErrorKind(err)
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithTransaction adds the identifying fields of tx. Descriptions are left out.
func (f LogFields) WithTransaction(tx core.Transaction) LogFields {
	f[FieldTxID] = tx.ID
	f[FieldUserID] = tx.UserID
	f[FieldTxKind] = string(tx.Kind)
	f[FieldAmount] = core.FormatAmount(tx.Amount)
	f[FieldCategory] = tx.CategoryID
	f[FieldDate] = tx.Date.String()
	return f
}

// WithBudget adds budget evaluation fields.
func (f LogFields) WithBudget(st core.BudgetStatus) LogFields {
	f[FieldBudgetID] = st.Budget.ID
	f[FieldUserID] = st.Budget.UserID
	f[FieldCategory] = st.Budget.CategoryID
	f[FieldPercent] = st.Percent.StringFixed(1)
	f[FieldTier] = string(st.Tier)
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog. The component key is
// dropped because Logger adds its own.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
