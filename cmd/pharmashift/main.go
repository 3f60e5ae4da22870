// pharmashift 命令行工具：离线生成排班、校验算法配置
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/paiban/pharmashift/pkg/logger"
)

var logLevel string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pharmashift",
		Short:         "PharmaShift 药房排班命令行工具",
		Long:          `根据门店覆盖规则和员工名单生成排班，输出冲突和评分。`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := logger.DefaultConfig()
			cfg.Level = logLevel
			cfg.Output = "stderr"
			logger.Init(cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "日志级别 (debug, info, warn, error)")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(validateConfigCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
