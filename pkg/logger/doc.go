// Package logger builds the *slog.Logger used by every notifycore component
// and provides attribute helpers so keys stay consistent across packages.
//
// New returns a logger configured by Option functions: output format (text or
// json), minimum level, static attributes and ContextExtractor callbacks that
// inject request-scoped values each time a record is handled.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "notifyd"),
//	    logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	logger.SetAsDefault(log)
//
//	log.LogAttrs(ctx, slog.LevelInfo, "notification delivered",
//	    logger.UserID(req.UserID),
//	    logger.NotificationID(id),
//	    logger.Provider("push"),
//	    logger.Duration(time.Since(start)),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
