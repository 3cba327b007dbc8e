package logger

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dwarvesf/icy-funding-backend/internal/types/environments"
)

type fatalHook struct {
	called bool
}

func (h *fatalHook) OnWrite(_ *zapcore.CheckedEntry, _ []zapcore.Field) {
	h.called = true
}

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{wrappedLogger: zap.New(core)}, logs
}

var _ = Describe("Logger", func() {
	DescribeTable("New builds a logger for every environment",
		func(env environments.Environment) {
			l := New(env)
			Expect(l).NotTo(BeNil())
			Expect(l.wrappedLogger).NotTo(BeNil())
		},
		Entry("production", environments.Production),
		Entry("staging", environments.Staging),
		Entry("development", environments.Development),
		Entry("test", environments.Test),
		Entry("unknown falls back to production config", environments.Environment("qa")),
	)

	Describe("levels", func() {
		It("writes each level with the message and fields", func() {
			l, logs := observed()
			l.Debug("[Cycle][Start] debug", map[string]string{"chain": "BTC"})
			l.Info("[Cycle][Start] info")
			l.Warn("[Cycle][Start] warn", map[string]string{"chain": "ETH"})
			l.Error("[Cycle][Start] error", map[string]string{"chain": "SOL"})

			entries := logs.All()
			Expect(entries).To(HaveLen(4))
			Expect(entries[0].Level).To(Equal(zapcore.DebugLevel))
			Expect(entries[0].ContextMap()).To(HaveKeyWithValue("chain", "BTC"))
			Expect(entries[1].Context).To(BeEmpty())
			Expect(entries[2].Level).To(Equal(zapcore.WarnLevel))
			Expect(entries[3].Level).To(Equal(zapcore.ErrorLevel))
			Expect(entries[3].Message).To(Equal("[Cycle][Start] error"))
		})

		It("runs the fatal hook instead of exiting", func() {
			hook := &fatalHook{}
			core, _ := observer.New(zapcore.DebugLevel)
			l := &Logger{wrappedLogger: zap.New(core, zap.WithFatalHook(hook))}

			l.Fatal("[Init][Config] cannot start", map[string]string{"error": "missing BASE_RPC_URL"})
			Expect(hook.called).To(BeTrue())
		})
	})

	Describe("With", func() {
		It("carries the bound fields on every later entry", func() {
			l, logs := observed()
			child := l.With(map[string]string{"job": "chain_monitor"})
			child.Info("first")
			child.Info("second", map[string]string{"chain": "ETH"})
			l.Info("parent")

			entries := logs.All()
			Expect(entries[0].ContextMap()).To(HaveKeyWithValue("job", "chain_monitor"))
			Expect(entries[1].ContextMap()).To(HaveKeyWithValue("job", "chain_monitor"))
			Expect(entries[1].ContextMap()).To(HaveKeyWithValue("chain", "ETH"))
			Expect(entries[2].ContextMap()).NotTo(HaveKey("job"))
		})
	})

	Describe("transformStrMapToFields", func() {
		It("orders fields by key", func() {
			fields := transformStrMapToFields(map[string]string{"zeta": "1", "alpha": "2", "mid": "3"})
			keys := make([]string, 0, len(fields))
			for _, f := range fields {
				keys = append(keys, f.Key)
			}
			Expect(keys).To(Equal([]string{"alpha", "mid", "zeta"}))
		})

		It("returns no fields for an empty map", func() {
			Expect(transformStrMapToFields(nil)).To(BeEmpty())
		})

		It("redacts key material", func() {
			fields := transformStrMapToFields(map[string]string{
				"treasury_private_key": "0xdeadbeef",
				"HD_SEED":              "abandon abandon",
				"admin_key":            "s3cret",
				"vault_token":          "hvs.xyz",
				"deposit_id":           "6f1c1c5e",
				"token":                "0x4200000000000000000000000000000000000006",
			})
			values := map[string]string{}
			for _, f := range fields {
				values[f.Key] = f.String
			}
			Expect(values).To(HaveKeyWithValue("treasury_private_key", redacted))
			Expect(values).To(HaveKeyWithValue("HD_SEED", redacted))
			Expect(values).To(HaveKeyWithValue("admin_key", redacted))
			Expect(values).To(HaveKeyWithValue("vault_token", redacted))
			Expect(values).To(HaveKeyWithValue("deposit_id", "6f1c1c5e"))
			Expect(values).To(HaveKeyWithValue("token", "0x4200000000000000000000000000000000000006"))
		})

		It("redacts fields bound through With", func() {
			l, logs := observed()
			l.With(map[string]string{"seed": "abandon"}).Info("derived")
			Expect(logs.All()[0].ContextMap()).To(HaveKeyWithValue("seed", redacted))
		})
	})
})
