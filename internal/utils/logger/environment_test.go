package logger

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ = Describe("logger configs", func() {
	DescribeTable("levels and encodings",
		func(cfg zap.Config, level zapcore.Level, encoding string, caller bool) {
			Expect(cfg.Level.Level()).To(Equal(level))
			Expect(cfg.Encoding).To(Equal(encoding))
			Expect(cfg.DisableCaller).To(Equal(!caller))
		},
		Entry("production", newProductionLoggerConfig(), zapcore.InfoLevel, "json", true),
		Entry("staging", newStagingLoggerConfig(), zapcore.InfoLevel, "json", false),
		Entry("development", newDevelopmentLoggerConfig(), zapcore.DebugLevel, "console", false),
		Entry("test", newTestLoggerConfig(), zapcore.DebugLevel, "json", false),
	)

	It("tags deployed environments with the service name", func() {
		Expect(newProductionLoggerConfig().InitialFields).To(HaveKeyWithValue("service", serviceName))
		Expect(newProductionLoggerConfig().InitialFields).To(HaveKeyWithValue("env", "production"))
		Expect(newStagingLoggerConfig().InitialFields).To(HaveKeyWithValue("env", "staging"))
		Expect(newDevelopmentLoggerConfig().InitialFields).To(BeEmpty())
	})

	It("samples production output only", func() {
		Expect(newProductionLoggerConfig().Sampling).NotTo(BeNil())
		Expect(newStagingLoggerConfig().Sampling).To(BeNil())
	})

	It("discards test output", func() {
		cfg := newTestLoggerConfig()
		Expect(cfg.OutputPaths).To(BeEmpty())
		Expect(cfg.ErrorOutputPaths).To(BeEmpty())
	})

	It("uses ISO8601 timestamps under ts", func() {
		enc := newJSONEncoderConfig()
		Expect(enc.TimeKey).To(Equal("ts"))
		Expect(enc.MessageKey).To(Equal("msg"))
	})
})
