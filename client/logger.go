package client

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 客户端共用的日志；InitLogger 之前丢弃一切输出，库调用方与测试无需配置
var Log = zap.NewNop().Sugar()

// InitLogger 把日志只写到滚动文件：终端归 TUI 所有，任何写 stdout/stderr 的输出都会弄花界面
// debug 打开后每条收发消息都以 Debug 级别记录原始载荷
func InitLogger(filePath string, debug bool) error {
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	logger := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), sink, level), zap.AddCaller())
	Log = logger.Sugar().Named("ballclient")
	return nil
}

// SyncLogger 退出前刷盘
func SyncLogger() {
	_ = Log.Sync()
}
