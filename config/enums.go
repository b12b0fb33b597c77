package config

// Page cache backend used by the web publisher.
// ENUM(none, file, sqlite)
type CacheBackend int

// Log verbosity.
// ENUM(none, debug, normal)
type LogLevel int
