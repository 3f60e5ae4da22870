package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paiban/pharmashift/internal/config"
)

func validateConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "校验算法默认配置文件",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")

			algo, err := config.LoadAlgorithmDefaults(path)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "配置有效: %s\n", path)
			fmt.Fprintf(w, "  策略: %s  偏好: %s  最大迭代: %d\n", algo.Strategy, algo.Preference, algo.MaxIterations)
			fmt.Fprintf(w, "  最短休息: %d 小时  最多连续: %d 天  允许超时: %t\n",
				algo.MinRestHours, algo.MaxConsecutiveDays, algo.AllowOvertime)
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "算法配置文件 (YAML)")
	cmd.MarkFlagRequired("file")
	return cmd
}
