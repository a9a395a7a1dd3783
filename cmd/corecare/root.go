package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hcunanan79/COREcare-access/config"
	"github.com/hcunanan79/COREcare-access/internal/repository"
	"github.com/hcunanan79/COREcare-access/internal/service"
	"github.com/hcunanan79/COREcare-access/pkg/database"
	applogger "github.com/hcunanan79/COREcare-access/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
)

var rootCmd = &cobra.Command{
	Use:           "corecare",
	Short:         "COREcare administration tool",
	Long:          `Administrative commands for the COREcare agency core: schema migrations, weekly summary backfill and payroll export.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		logger, err = applogger.NewLogger(&cfg.Log)
		if err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}

		db, err = database.NewDB(&cfg.Database, cfg.Log.Level, logger)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
}

// newServices CLI 不依赖 Redis：打卡锁与黑名单在此场景下无用
func newServices() (*repository.Repository, *service.Service) {
	repo := repository.NewRepository(db)
	return repo, service.NewService(cfg, repo, nil, nil, logger)
}
