package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/gigboard/internal/config"
	"github.com/nao1215/gigboard/pkg/middleware"
)

// newTokenCommand は `token` コマンドを生成する。
// 動作確認用に、指定したメールアドレスのJWTを発行する。
// 内部API（send）を呼び出すには --role service のトークンが必要になる。
func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "動作確認用のJWTを発行する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			email, _ := cmd.Flags().GetString("email")
			accountID, _ := cmd.Flags().GetString("account-id")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, err := middleware.GenerateJWTWithRole(secret, accountID, email, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("secret", envOr("JWT_SECRET", config.DefaultJWTSecret), "JWT署名用の秘密鍵")
	cmd.Flags().String("email", "", "トークンに含めるメールアドレス")
	cmd.Flags().String("account-id", os.Getenv("USER"), "トークンに含めるアカウントID")
	cmd.Flags().String("role", middleware.RoleIndividual, "トークンに含めるロール（individual, company, admin, service）")
	cmd.Flags().Duration("ttl", middleware.DefaultTokenTTL, "有効期間")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
