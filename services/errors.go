package services

import "errors"

// Общие ошибки сервисного слоя. Ошибки живых сессий объявлены в пакете
// debates, ошибки хранилища — в repositories.
var (
	// Аутентификация
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")

	// Очередь подбора
	ErrAlreadyQueued   = errors.New("already in the matchmaking queue")
	ErrAlreadyInDebate = errors.New("already in an active debate")

	// Ресурсы
	ErrUserNotFound = errors.New("user not found")
)
