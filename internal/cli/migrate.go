package cli

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/gigboard/internal/config"
	"github.com/nao1215/gigboard/internal/store/sqlite"
)

// newMigrateCommand は `migrate` コマンドを生成する。
// SQLiteのスキーマを適用する。--status の場合は適用状況のみ表示する。
func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "SQLiteの通知ストアにマイグレーションを適用する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			statusOnly, _ := cmd.Flags().GetBool("status")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverSQLite {
				return fmt.Errorf("マイグレーションはsqliteドライバでのみ使用できます: %s", cfg.Store.Driver)
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			s, err := sqlite.Connect(cmd.Context(), cfg.Store.SQLitePath)
			if err != nil {
				return err
			}
			defer s.Close()

			if !statusOnly {
				applied, err := s.Migrator(logger).Up(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s に%d件のマイグレーションを適用しました\n", cfg.Store.SQLitePath, applied)
			}

			migrations, err := s.Migrator(logger).Status(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
			for _, m := range migrations {
				applied := "未適用"
				if m.AppliedAt != nil {
					applied = m.AppliedAt.Local().Format(displayTime)
				}
				fmt.Fprintf(tw, "%06d\t%s\t%s\n", m.Version, m.Name, applied)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("config", envOr("NOTIFICATION_CONFIG", ""), "設定ファイルのパス（YAML）")
	cmd.Flags().Bool("status", false, "適用状況のみ表示する")
	return cmd
}
