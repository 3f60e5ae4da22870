package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/paiban/pharmashift/internal/config"
	"github.com/paiban/pharmashift/internal/input"
	"github.com/paiban/pharmashift/pkg/model"
	"github.com/paiban/pharmashift/pkg/scheduler"
	"github.com/paiban/pharmashift/pkg/scheduler/demand"
	"github.com/paiban/pharmashift/pkg/stats"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "根据门店输入文件生成排班",
		Example: `  pharmashift generate --input site.yaml
  pharmashift generate --input site.yaml --prior last-week.json --output run.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input")
			outputPath, _ := cmd.Flags().GetString("output")
			priorPath, _ := cmd.Flags().GetString("prior")
			defaultsPath, _ := cmd.Flags().GetString("defaults")

			defaults := model.DefaultAlgorithmConfig()
			if defaultsPath != "" {
				var err error
				if defaults, err = config.LoadAlgorithmDefaults(defaultsPath); err != nil {
					return err
				}
			}

			doc, err := input.LoadFile(inputPath, defaults)
			if err != nil {
				return err
			}
			req, err := doc.ToRequest(defaults)
			if err != nil {
				return err
			}
			if priorPath != "" {
				if req.Prior, err = loadPrior(priorPath); err != nil {
					return err
				}
			}

			result, err := scheduler.NewEngine().Generate(req)
			if err != nil {
				return err
			}

			// 需求时段只用于报告；引擎已校验过规则，这里不会失败
			slots, err := demand.Build(req.Rules, req.Horizon)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), req, slots, result)

			if outputPath != "" {
				if err := writeResult(outputPath, result); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n结果已写入 %s\n", outputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", "", "门店排班输入文件 (YAML)")
	cmd.Flags().StringP("output", "o", "", "将完整结果写入 JSON 文件")
	cmd.Flags().String("prior", "", "上期排班结果 JSON，用于变动最小化")
	cmd.Flags().String("defaults", "", "算法默认配置文件 (YAML)")
	cmd.MarkFlagRequired("input")

	return cmd
}

// loadPrior 读取上一次 generate --output 写出的结果
func loadPrior(path string) ([]model.Shift, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取上期排班失败: %w", err)
	}
	var prev model.RunResult
	if err := json.Unmarshal(data, &prev); err != nil {
		return nil, fmt.Errorf("解析上期排班失败: %w", err)
	}
	return prev.Shifts, nil
}

func writeResult(path string, result *model.RunResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化排班结果失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入排班结果失败: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, req scheduler.Request, slots []model.DemandSlot, result *model.RunResult) {
	names := make(map[string]string, len(req.Roster))
	for _, emp := range req.Roster {
		names[emp.ID.String()] = emp.Name
	}

	fmt.Fprintf(w, "门店: %s  周期: %s ~ %s\n", req.Site.Name, result.Horizon.StartDate, result.Horizon.EndDate)
	fmt.Fprintf(w, "班次: %d  冲突: %d  全局得分: %.3f  耗时: %s\n\n",
		len(result.Shifts), len(result.Conflicts), result.GlobalScore, result.ExecutionTime)

	analyzer := stats.NewCoverageAnalyzer()
	fmt.Fprint(w, analyzer.GenerateCoverageReport(analyzer.Analyze(slots, result.Shifts)))

	fmt.Fprintln(w, "\n员工工时:")
	for _, s := range result.EmployeeStats {
		mark := ""
		if !s.WithinCaps {
			mark = "  超出上限"
		}
		fmt.Fprintf(w, "  %-8s %6.1f 小时  %d 班  值班 %d  节假日 %d%s\n",
			s.Name, s.TotalHours, s.Shifts, s.Guards, s.Holidays, mark)
	}

	if len(result.Conflicts) == 0 {
		return
	}
	fmt.Fprintln(w, "\n冲突:")
	conflicts := append([]model.Conflict(nil), result.Conflicts...)
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Severity.Rank() > conflicts[j].Severity.Rank()
	})
	for _, c := range conflicts {
		who := ""
		if c.EmployeeID != nil {
			who = " " + names[c.EmployeeID.String()]
		}
		fmt.Fprintf(w, "  [%s] %s%s %s\n", c.Severity, c.Date, who, c.Message)
		for _, s := range c.Suggestions {
			fmt.Fprintf(w, "      建议: %s\n", s)
		}
	}
}
