package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/internal/service"
)

var (
	payrollStart  string
	payrollEnd    string
	payrollFormat string
	payrollOut    string
)

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Payroll reporting",
}

var payrollExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export caregiver hours for a date range as CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc := newServices()
		caller := service.Caller{Role: model.RoleAdmin, IP: "cli"}
		q := &dto.PayrollQuery{DateRangeQuery: dto.DateRangeQuery{Start: payrollStart, End: payrollEnd}}

		export := svc.Payroll.ExportCSV
		switch payrollFormat {
		case "csv":
		case "xlsx":
			export = svc.Payroll.ExportXLSX
		default:
			return fmt.Errorf("--format must be csv or xlsx")
		}

		buf, filename, err := export(cmd.Context(), caller, q)
		if err != nil {
			return err
		}

		path := payrollOut
		if path == "" {
			path = filename
		} else if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, filename)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("写入文件失败: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func init() {
	payrollExportCmd.Flags().StringVar(&payrollStart, "start", "", "first day, YYYY-MM-DD (default: current week)")
	payrollExportCmd.Flags().StringVar(&payrollEnd, "end", "", "last day, YYYY-MM-DD")
	payrollExportCmd.Flags().StringVar(&payrollFormat, "format", "csv", "csv or xlsx")
	payrollExportCmd.Flags().StringVarP(&payrollOut, "out", "o", "", "output file or directory (default: suggested filename)")
	payrollCmd.AddCommand(payrollExportCmd)
	rootCmd.AddCommand(payrollCmd)
}
