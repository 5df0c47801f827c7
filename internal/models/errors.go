package models

import "errors"

var (
	// ErrAccountNotFound: учётная запись ещё не создана.
	ErrAccountNotFound = errors.New("account not found")
	// ErrStorageUnavailable: хранилище недоступно, решение не может быть принято.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrActivationAfterPaymentFailed: платёж принят, но премиум не активирован.
	ErrActivationAfterPaymentFailed = errors.New("activation after payment failed")
	// ErrMigrationStepFailed: не удалось добавить критичную колонку.
	ErrMigrationStepFailed = errors.New("migration step failed")
	// ErrUnknownPlan: план отсутствует в каталоге.
	ErrUnknownPlan = errors.New("unknown plan")
)
