package config

import "errors"

// Ошибки загрузки конфигурации.
var (
	ErrNotFound = errors.New("config file not found")
	ErrInvalid  = errors.New("invalid config")
)
