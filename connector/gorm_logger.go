package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ceyewan/shardis/clog"
)

// gormLogger 将 GORM 日志适配到 clog：错误 SQL 记 Error，慢 SQL 记 Warn，其余记 Debug
type gormLogger struct {
	logger        clog.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(l clog.Logger, slow time.Duration) logger.Interface {
	return &gormLogger{
		logger:        l.WithNamespace("sql"),
		level:         logger.Warn,
		slowThreshold: slow,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.logger.ErrorContext(ctx, "sql error",
			clog.Duration("elapsed", elapsed),
			clog.String("sql", sql),
			clog.Int64("rows", rows),
			clog.Error(err),
		)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.logger.WarnContext(ctx, "slow sql",
			clog.Duration("elapsed", elapsed),
			clog.String("sql", sql),
			clog.Int64("rows", rows),
		)
	case l.level >= logger.Info:
		sql, rows := fc()
		l.logger.DebugContext(ctx, "sql",
			clog.Duration("elapsed", elapsed),
			clog.String("sql", sql),
			clog.Int64("rows", rows),
		)
	}
}
