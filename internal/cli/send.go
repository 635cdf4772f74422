package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/gigboard/pkg/httpclient"
)

// newSendCommand は `send` コマンドを生成する。内部APIで通知を1件作成する。
func newSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "通知を1件作成する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			recipient, _ := cmd.Flags().GetString("recipient")
			kind, _ := cmd.Flags().GetString("kind")
			title, _ := cmd.Flags().GetString("title")
			body, _ := cmd.Flags().GetString("body")
			entityType, _ := cmd.Flags().GetString("entity-type")
			entityID, _ := cmd.Flags().GetString("entity-id")
			metadataJSON, _ := cmd.Flags().GetString("metadata")

			var metadata map[string]any
			if metadataJSON != "" {
				if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
					return fmt.Errorf("--metadata はJSONオブジェクトで指定してください: %w", err)
				}
			}

			id, err := newClient(cmd).Create(cmd.Context(), httpclient.CreateRequest{
				Recipient:         recipient,
				Kind:              kind,
				Title:             title,
				Body:              body,
				RelatedEntityType: entityType,
				RelatedEntityID:   entityID,
				Metadata:          metadata,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().String("recipient", "", "通知先のメールアドレス")
	cmd.Flags().String("kind", "", "通知の種類（ACCOUNT_STATUS, GIG_STATUS など）")
	cmd.Flags().String("title", "", "通知の見出し")
	cmd.Flags().String("body", "", "通知の本文")
	cmd.Flags().String("entity-type", "", "関連エンティティの種類")
	cmd.Flags().String("entity-id", "", "関連エンティティのID")
	cmd.Flags().String("metadata", "", "追加情報（JSONオブジェクト）")
	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}
