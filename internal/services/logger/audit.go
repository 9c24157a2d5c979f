package logger

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/metrics"
)

const fileMode = 0o644

type sender interface {
	Send(to, subject, additionalHeaders, body string) error
}

// AuditSender records every outbound delivery attempt to a structured file
// log before reporting the transport result.
type AuditSender struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Proxy   sender
}

func NewAuditSender(logger *zap.Logger, m *metrics.Metrics, proxy sender) *AuditSender {
	return &AuditSender{
		Logger:  logger,
		Metrics: m,
		Proxy:   proxy,
	}
}

func (a *AuditSender) Send(to, subject, additionalHeaders, body string) error {
	start := time.Now()
	err := a.Proxy.Send(to, subject, additionalHeaders, body)
	duration := time.Since(start)

	if err != nil {
		a.Logger.Error("mail delivery failed",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		a.Metrics.RecordEmail("mail", err)
		return err
	}

	a.Logger.Info("mail delivered",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
		zap.Duration("duration", duration),
	)
	a.Metrics.RecordEmail("mail", nil)

	return nil
}

// NewFileLogger builds a zap JSON logger appending to the given file.
func NewFileLogger(filePath string) (*zap.Logger, error) {
	file, err := os.OpenFile(filepath.Clean(filePath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return nil, err
	}

	writer := zapcore.AddSync(file)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		writer,
		zap.InfoLevel,
	)
	return zap.New(core), nil
}
