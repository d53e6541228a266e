package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/ccsl/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.VerificationQueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.LicenseKey, convey.ShouldEqual, "CCSL-DEV-0000")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CCSL_ADDR", ":8080")
			_ = os.Setenv("CCSL_VERIFIER_WORKERS", "16")
			_ = os.Setenv("CCSL_VERIFICATION_DELAY_MS", "50")
			_ = os.Setenv("CCSL_BASE_RATE_PER_LINE", "0.5")
			_ = os.Setenv("CCSL_LOG_FORMAT", "json")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.VerifierWorkers, convey.ShouldEqual, 16)
				convey.So(cfg.VerificationDelayMS, convey.ShouldEqual, 50)
				convey.So(cfg.BaseRatePerLine, convey.ShouldEqual, 0.5)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# treasury and pool
addr: ":9090"
project_name: "demo"
treasury_wallet: "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy"
verifier_workers: 24
subscription_amount: 0.25
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CCSL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ProjectName, convey.ShouldEqual, "demo")
				convey.So(cfg.TreasuryWallet, convey.ShouldEqual, "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy")
				convey.So(cfg.VerifierWorkers, convey.ShouldEqual, 24)
				convey.So(cfg.SubscriptionAmount, convey.ShouldEqual, 0.25)
				convey.So(cfg.VerificationQueueSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
verifier_workers: 24
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CCSL_CONFIG", tmpFile)
			_ = os.Setenv("CCSL_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.VerifierWorkers, convey.ShouldEqual, 24)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CCSL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CCSL_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("CCSL_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an invalid treasury wallet", func() {
			_ = os.Setenv("CCSL_TREASURY_WALLET", "0xdeadbeef")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CCSL_VERIFICATION_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"CCSL_CONFIG",
		"CCSL_ADDR",
		"CCSL_LOG_FORMAT",
		"CCSL_VERIFIER_WORKERS",
		"CCSL_VERIFICATION_DELAY_MS",
		"CCSL_VERIFICATION_QUEUE_SIZE",
		"CCSL_BASE_RATE_PER_LINE",
		"CCSL_TREASURY_WALLET",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "ccsl-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
