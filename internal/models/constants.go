package models

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	// DateLayout формат календарной даты бронирования
	DateLayout = "2006-01-02"

	// MaxReasonLength максимальная длина поля reason
	MaxReasonLength = 500

	// DefaultCascadeRetries количество попыток каскадного обновления дочерних бронирований
	DefaultCascadeRetries = 3

	// DefaultLockTTL время жизни блокировки слота в секундах
	DefaultLockTTL = 10

	// DefaultLockWait максимальное ожидание блокировки слота в секундах
	DefaultLockWait = 5

	// WorkerQueueSize размер очереди воркера уведомлений
	WorkerQueueSize = 128

	// DefaultListLimit размер выборки списка бронирований по умолчанию
	DefaultListLimit = 200
)

// IsDecided reports whether status is terminal.
func IsDecided(status string) bool {
	return status == StatusApproved || status == StatusRejected
}
