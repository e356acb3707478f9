package logging

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLogDir points production file logs somewhere other than ./logs.
const EnvLogDir = "VCW_LOG_DIR"

// New builds the process logger. Development gets a colored console
// encoder; production gets JSON on stderr plus a daily log file when a
// log directory is writable.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		core := zapcore.NewCore(
			newConsoleEncoder(shouldColor()),
			zapcore.Lock(os.Stderr),
			zapcore.DebugLevel,
		)
		return zap.New(core, zap.AddCaller()), nil
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEnc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(jsonEnc, zapcore.Lock(os.Stderr), zapcore.InfoLevel),
	}
	if file := openLogFile(); file != nil {
		cores = append(cores, zapcore.NewCore(jsonEnc, zapcore.AddSync(file), zapcore.InfoLevel))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func resolveLogDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvLogDir)); dir != "" {
		return dir
	}
	return filepath.Join(".", "logs")
}

func openLogFile() *os.File {
	dir := resolveLogDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil
	}
	name := "server_" + time.Now().Format("2006-01-02") + ".log"
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil
	}
	return file
}

func shouldColor() bool {
	return os.Getenv("NO_COLOR") == ""
}
