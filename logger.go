package settingsstore

import "log/slog"

// defaultLogger drops every record. Stores only log when a logger is
// supplied with WithLogger.
var defaultLogger = slog.New(slog.DiscardHandler)
