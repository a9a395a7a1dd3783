package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hcunanan79/COREcare-access/internal/model"
)

var (
	recomputeCaregiver string
	recomputeFrom      string
	recomputeTo        string
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute-summaries",
	Short: "Rebuild weekly summaries from visits (idempotent)",
	Long: `Recompute every weekly summary touched by the date range.
Without --caregiver all active caregivers are processed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loc := cfg.Agency.Location()
		from, err := parseCLIDate("from", recomputeFrom, loc)
		if err != nil {
			return err
		}
		to, err := parseCLIDate("to", recomputeTo, loc)
		if err != nil {
			return err
		}
		if to.Before(from) {
			return fmt.Errorf("--to must not be before --from")
		}

		repo, svc := newServices()
		ctx := cmd.Context()

		caregivers := []string{recomputeCaregiver}
		if recomputeCaregiver == "" {
			users, err := repo.User.ListActiveByRole(ctx, model.RoleCaregiver)
			if err != nil {
				return fmt.Errorf("查询护工失败: %w", err)
			}
			caregivers = caregivers[:0]
			for _, u := range users {
				caregivers = append(caregivers, u.UserID)
			}
		}

		total := 0
		for _, id := range caregivers {
			weeks, err := svc.Summary.RecomputeRange(ctx, id, from, to)
			if err != nil {
				return fmt.Errorf("护工 %s 回填失败: %w", id, err)
			}
			total += weeks
			logger.Info("周汇总回填完成", zap.String("caregiver_id", id), zap.Int("weeks", weeks))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d week(s) for %d caregiver(s)\n", total, len(caregivers))
		return nil
	},
}

func parseCLIDate(flag, raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: invalid date %q, expected YYYY-MM-DD", flag, raw)
	}
	return t, nil
}

func init() {
	recomputeCmd.Flags().StringVar(&recomputeCaregiver, "caregiver", "", "caregiver user id (default: all active caregivers)")
	recomputeCmd.Flags().StringVar(&recomputeFrom, "from", "", "first day, YYYY-MM-DD")
	recomputeCmd.Flags().StringVar(&recomputeTo, "to", "", "last day, YYYY-MM-DD")
	_ = recomputeCmd.MarkFlagRequired("from")
	_ = recomputeCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(recomputeCmd)
}
