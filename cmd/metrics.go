package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mingkeli/devagent/pkg/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "查看与导出会话指标",
}

var metricsShowCmd = &cobra.Command{
	Use:   "show [导出文件]",
	Short: "显示最近一次导出的指标摘要",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Logger.Close()

		path := a.Config.MetricsExportPath
		if len(args) == 1 {
			path = args[0]
		}
		export, err := metrics.ImportExport(path)
		if err != nil {
			return fmt.Errorf("指标导入失败: %w", err)
		}
		stats := export.SessionStats
		fmt.Printf("📊 导出时间: %s\n", export.ExportTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("  操作总数: %d  成功率: %.1f%%\n", stats.TotalOperations, stats.SuccessRate()*100)
		fmt.Printf("  平均耗时: %.0f ms\n", stats.AverageDurationMS())
		fmt.Printf("  最近样本: %d 条\n", len(export.RecentMetrics))
		return nil
	},
}

var metricsExportCmd = &cobra.Command{
	Use:   "export [文件]",
	Short: "把当前会话指标写入导出文件",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Logger.Close()

		path := a.Config.MetricsExportPath
		if len(args) == 1 {
			path = args[0]
		}
		if err := a.Metrics.ExportTo(path); err != nil {
			return fmt.Errorf("指标导出失败: %w", err)
		}
		fmt.Printf("✅ 指标已导出到 %s\n", path)
		return nil
	},
}

func init() {
	metricsCmd.AddCommand(metricsShowCmd)
	metricsCmd.AddCommand(metricsExportCmd)
}
