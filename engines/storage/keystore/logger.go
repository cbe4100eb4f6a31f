package keystore

import (
	"context"
	"time"

	"github.com/leapcode/keymanager/core/pkg/helpers"
	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

func NewGormLogger(logger *logrus.Entry) *GormLogger {
	return &GormLogger{
		logger: logger,
	}
}

// GormLogger routes gorm output to logrus. SQL statements are logged at trace level.
type GormLogger struct {
	logger *logrus.Entry
}

func (l *GormLogger) LogMode(lvl gormlogger.LogLevel) gormlogger.Interface {
	newlogger := *l
	return &newlogger
}

func (l *GormLogger) Info(ctx context.Context, str string, rest ...interface{}) {
	helpers.ConfigureLogger(ctx, l.logger).Infof(str, rest...)
}

func (l *GormLogger) Warn(ctx context.Context, str string, rest ...interface{}) {
	helpers.ConfigureLogger(ctx, l.logger).Warnf(str, rest...)
}

func (l *GormLogger) Error(ctx context.Context, str string, rest ...interface{}) {
	helpers.ConfigureLogger(ctx, l.logger).Errorf(str, rest...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	le := helpers.ConfigureLogger(ctx, l.logger)
	sql, rows := fc()
	if err != nil {
		le.Errorf("took: %s, err: %s, sql: %s, affected rows: %d", time.Since(begin).String(), err, sql, rows)
	} else {
		le.Tracef("took: %s, sql: %s, affected rows: %d", time.Since(begin).String(), sql, rows)
	}
}
