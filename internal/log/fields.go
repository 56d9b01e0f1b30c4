package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldOperation    = "operation"
	FieldError        = "error"
	FieldRequestID    = "request_id"
	FieldDuration     = "duration_ms"
	FieldSlice        = "slice"
	FieldGeneration   = "generation"
	FieldStage        = "stage"
	FieldGroupID      = "group_id"
	FieldExpenseID    = "expense_id"
	FieldSettlementID = "settlement_id"
	FieldVoteID       = "vote_id"
	FieldOptionID     = "option_id"
	FieldUserID       = "user_id"
	FieldMethod       = "method"
	FieldCount        = "count"
	FieldFailed       = "failed"
	FieldEntity       = "entity"
	FieldAction       = "action"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentStore       = "store"
	ComponentCoordinator = "coordinator"
	ComponentAPI         = "api"
	ComponentFeed        = "feed"
	ComponentAMQP        = "amqp"
	ComponentCache       = "cache"
	ComponentBackend     = "backend"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpRefresh    = "refresh"
	OpInvalidate = "invalidate"
	OpToggle     = "toggle"
	OpConfirm    = "confirm"
	OpClose      = "close"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithSlice adds the cache slice and generation
func (f LogFields) WithSlice(slice string, gen uint64) LogFields {
	f[FieldSlice] = slice
	f[FieldGeneration] = gen
	return f
}

// WithExpense adds expense identifiers
func (f LogFields) WithExpense(groupID, expenseID string) LogFields {
	if groupID != "" {
		f[FieldGroupID] = groupID
	}
	if expenseID != "" {
		f[FieldExpenseID] = expenseID
	}
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
