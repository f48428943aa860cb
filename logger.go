package wsupervisor

// logger is the facade every component logs through: WithField chaining
// plus leveled Debug/Info/Warn/Error, each with a plain/f/ln variant.
type logger interface {
	WithField(key string, value any) logger
	Debug(args ...any)
	Debugf(format string, args ...any)
	Debugln(args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Infoln(args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Warnln(args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Errorln(args ...any)
}

// Logger is the exported alias hosts implement when supplying their own
// logging backend via Config.Logger.
type Logger = logger
