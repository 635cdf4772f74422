package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/gigboard/pkg/httpclient"
)

// newReadCommand は `read` コマンドを生成する。
func newReadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read [ID...]",
		Short: "通知を既読にする",
		Long: `指定したIDの通知、または --all-before 以前の通知をすべて既読にする。
IDを指定した場合は --all-before は無視される。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			allBeforeStr, _ := cmd.Flags().GetString("all-before")
			allBefore, err := parseTime("all-before", allBeforeStr)
			if err != nil {
				return err
			}
			if len(args) == 0 && allBefore == nil {
				return errors.New("IDか --all-before のどちらかを指定してください")
			}

			unread, err := newClient(cmd).MarkRead(cmd.Context(), httpclient.MarkReadRequest{
				IDs:       args,
				AllBefore: allBefore,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "未読: %d件\n", unread)
			return nil
		},
	}
	cmd.Flags().String("all-before", "", "この日時以前の通知をすべて既読にする（RFC 3339）")
	return cmd
}
