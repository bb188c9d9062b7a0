package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"github.com/courseshare/courseshare-backend/pkg/logger"
)

// gormLog forwards GORM diagnostics to the structured logger. SQL text is never
// logged because bound values carry client phone numbers and addresses.
type gormLog struct {
	logg *logger.Logger
	slow time.Duration
	mode gormlogger.LogLevel
}

func newGormLog(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &gormLog{logg: logg, slow: slow, mode: gormlogger.Warn}
}

func (g *gormLog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.mode = level
	return &clone
}

func (g *gormLog) Info(ctx context.Context, msg string, args ...any) {
	if g.mode >= gormlogger.Info {
		g.logg.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Warn(ctx context.Context, msg string, args ...any) {
	if g.mode >= gormlogger.Warn {
		g.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Error(ctx context.Context, msg string, args ...any) {
	if g.mode >= gormlogger.Error {
		g.logg.Error(ctx, "db.error", fmt.Errorf(msg, args...))
	}
}

func (g *gormLog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.mode <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.mode >= gormlogger.Error:
		_, rows := fc()
		ctx = g.logg.WithFields(ctx, map[string]any{"caller": utils.FileWithLineNum(), "elapsed_ms": elapsed.Milliseconds(), "rows": rows})
		g.logg.Error(ctx, "db.query_failed", err)
	case g.slow > 0 && elapsed > g.slow && g.mode >= gormlogger.Warn:
		_, rows := fc()
		ctx = g.logg.WithFields(ctx, map[string]any{"caller": utils.FileWithLineNum(), "elapsed_ms": elapsed.Milliseconds(), "rows": rows})
		g.logg.Warn(ctx, "db.slow_query")
	}
}
