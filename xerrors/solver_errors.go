package xerrors

var (
	// ErrProblemInvalid 成本矩阵、供给或需求不合法。
	ErrProblemInvalid = New(ErrInvalidArg, 400101, "invalid transportation problem", "costs, supply and demand must be present and non-negative", nil)
	// ErrDimensionOutOfRange 起点或终点数量超出允许范围。
	ErrDimensionOutOfRange = New(ErrInvalidArg, 400102, "dimension out of range", "origins and destinations must be within the configured bounds", nil)
	// ErrLabelInvalid 标签为空或包含数字。
	ErrLabelInvalid = New(ErrInvalidArg, 400103, "invalid label", "labels must be non-empty and must not contain digits", nil)
	// ErrBatchTooLarge 批量求解数量超限。
	ErrBatchTooLarge = New(ErrInvalidArg, 400104, "batch too large", "reduce the number of problems in one batch", nil)
	// ErrSessionNotFound 问题会话不存在或已过期。
	ErrSessionNotFound = New(ErrNotFound, 404101, "problem not found", "the problem session does not exist or has expired", nil)
	// ErrSolutionNotFound 求解记录不存在。
	ErrSolutionNotFound = New(ErrNotFound, 404102, "solution not found", "no persisted solution with this id", nil)
	// ErrMalformedCell 求解结果内部不一致。
	ErrMalformedCell = New(ErrInternal, 500101, "malformed allocation cell", "annotated cell does not match the assignment ledger", nil)
	// ErrDependencyUnavailable 存储或消息依赖不可用。
	ErrDependencyUnavailable = New(ErrUnavailable, 503101, "dependency unavailable", "a storage or messaging dependency is unavailable", nil)

	// ErrRateLimited 客户端请求频率超限。
	ErrRateLimited = New(ErrLimitExceeded, 429001, "too many requests", "access rate limit exceeded", nil)
	// ErrRequestTimeout 请求在截止时间内未完成。
	ErrRequestTimeout = New(ErrDeadlineExceeded, 504001, "request timeout", "", nil)
)
