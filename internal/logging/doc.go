// Package logging provides slog-based structured logging helpers shared by
// every pipeline component: logger construction from config, attribute
// aliases, and component-scoped child loggers.
package logging
