package domain

// TargetKind discriminates the TrackerTarget tagged union.
// Value object - immutable string enum.
type TargetKind string

const (
	TargetKindPage TargetKind = "PAGE"
	TargetKindAPI  TargetKind = "API"
)

// RetryStrategyKind discriminates the RetryStrategy tagged union.
type RetryStrategyKind string

const (
	RetryKindConstant    RetryStrategyKind = "CONSTANT"
	RetryKindExponential RetryStrategyKind = "EXPONENTIAL"
)

// ActionKind discriminates the Action tagged union.
type ActionKind string

const (
	ActionKindServerLog ActionKind = "SERVER_LOG"
	ActionKindEmail     ActionKind = "EMAIL"
	ActionKindWebhook   ActionKind = "WEBHOOK"
)

// TaskTypeKind discriminates the TaskType tagged union.
type TaskTypeKind string

const (
	TaskKindEmail TaskTypeKind = "EMAIL"
	TaskKindHTTP  TaskTypeKind = "HTTP"
)

// EmailContentKind discriminates the EmailContent tagged union.
type EmailContentKind string

const (
	EmailContentKindLiteral  EmailContentKind = "LITERAL"
	EmailContentKindTemplate EmailContentKind = "TEMPLATE"
)

// JobType enumerates the kinds of rows the scheduler persists in
// scheduler_jobs: the three fixed recurring jobs plus one row per tracker
// carrying a JobConfig.
type JobType string

const (
	JobTypeTrackersSchedule JobType = "TRACKERS_SCHEDULE"
	JobTypeTrackersRun      JobType = "TRACKERS_RUN"
	JobTypeTasksRun         JobType = "TASKS_RUN"
	JobTypePerTracker       JobType = "PER_TRACKER"
)
