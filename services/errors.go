package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ошибки "не найдено"
	ErrMemberNotFound        = errors.New("member not found")
	ErrGameNotFound          = errors.New("game not found")
	ErrPersonalEventNotFound = errors.New("personal event not found")
	ErrParticipantNotFound   = errors.New("participant not found")
	ErrUserNotFound          = errors.New("user not found")

	// Ошибки валидации и бизнес-правил. Вся пачка изменений участников
	// отклоняется до единой записи в БД — частичных применений не бывает.
	ErrValidationFailed         = errors.New("validation failed")
	ErrMemberNameRequired       = errors.New("member name is required")
	ErrEventTitleRequired       = errors.New("event title is required")
	ErrParticipantMemberInvalid = errors.New("participant member id must be positive")
	ErrNegativeAmount           = errors.New("amount must not be negative")
	ErrParticipantUnknownMember = errors.New("payment fields reference a member outside the requested roster")

	// Ошибки конфликтов
	ErrUserEmailConflict   = errors.New("email address is already in use")
	ErrMemberPhoneConflict = errors.New("phone number is already in use")
	ErrMemberReferenced    = errors.New("member is referenced by games or events and cannot be deleted")

	// Ошибки аутентификации и авторизации
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	// Транзакция сверки не уложилась в бюджет времени. Повтор — на стороне
	// клиента: автоматических ретраев нет.
	ErrTransactionTimeout = errors.New("reconciliation transaction timed out")

	// Вспомогательные сервисы
	ErrAvatarInvalidType    = errors.New("avatar must be a png, jpeg or webp image")
	ErrAvatarStorageMissing = errors.New("avatar storage is not configured")
	ErrReminderUnavailable  = errors.New("payment reminders are not available for this member")
)
