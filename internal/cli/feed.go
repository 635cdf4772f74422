package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/gigboard/pkg/httpclient"
)

const displayTime = "2006-01-02 15:04:05"

// newFeedCommand は `feed` コマンドを生成する。
func newFeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "認証済みユーザーの通知フィードを表示する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			unread, _ := cmd.Flags().GetBool("unread")
			limit, _ := cmd.Flags().GetInt("limit")
			afterStr, _ := cmd.Flags().GetString("after")
			cursorStr, _ := cmd.Flags().GetString("cursor")

			after, err := parseTime("after", afterStr)
			if err != nil {
				return err
			}
			cursor, err := parseTime("cursor", cursorStr)
			if err != nil {
				return err
			}

			feed, err := newClient(cmd).ListFeed(cmd.Context(), httpclient.FeedParams{
				OnlyUnread: unread,
				After:      after,
				Cursor:     cursor,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			return printFeed(cmd.OutOrStdout(), feed)
		},
	}
	cmd.Flags().Bool("unread", false, "未読の通知のみ表示する")
	cmd.Flags().Int("limit", 0, "表示件数（省略時20、最大50）")
	cmd.Flags().String("after", "", "この日時より後の通知のみ表示する（RFC 3339）")
	cmd.Flags().String("cursor", "", "この日時より前の通知を表示する（RFC 3339）")
	return cmd
}

// printFeed はフィードを表形式で出力する。
func printFeed(w io.Writer, feed *httpclient.Feed) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tKIND\tREAD\tTITLE")
	for _, n := range feed.Items {
		read := "-"
		if n.IsRead {
			read = "✓"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.CreatedAt.Local().Format(displayTime), n.Kind, read, oneLine(n.Title))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n未読: %d件\n", feed.UnreadCount)
	if feed.NextCursor != nil {
		fmt.Fprintf(w, "次のページ: --cursor %s\n", feed.NextCursor.UTC().Format(time.RFC3339Nano))
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// newUnreadCommand は `unread` コマンドを生成する。
func newUnreadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "未読件数を表示する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, err := newClient(cmd).UnreadCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}
