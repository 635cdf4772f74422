package notification

import (
	"fmt"

	"github.com/nao1215/gigboard/pkg/event"
)

// statusLabels は状態値の表示名。
var statusLabels = map[string]string{
	event.AccountStatusPending:         "審査中",
	event.AccountStatusApproved:        "承認",
	event.AccountStatusRejected:        "非承認",
	event.ApplicationStatusShortlisted: "選考中",
	event.ApplicationStatusAccepted:    "採用",
}

// statusLabel は状態値の表示名を返す。未知の値はそのまま返す。
func statusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// render はペイロードから通知の見出しと本文を組み立てる。
func render(p event.Payload) (title, body string) {
	switch data := p.(type) {
	case event.AccountStatusData:
		switch data.Status {
		case event.AccountStatusApproved:
			return "アカウントが承認されました", "アカウントが承認されました。ギグへの応募や掲載を開始できます。"
		case event.AccountStatusRejected:
			return "アカウントは承認されませんでした", "アカウントの審査の結果、今回は承認されませんでした。"
		default:
			return "アカウントの状態が更新されました",
				fmt.Sprintf("アカウントの状態が「%s」に変更されました。", statusLabel(data.Status))
		}
	case event.GigStatusData:
		return "応募状況が更新されました",
			fmt.Sprintf("「%s」への応募が「%s」になりました。", data.GigTitle, statusLabel(data.Status))
	default:
		return "お知らせ", fmt.Sprintf("%s に関するお知らせがあります。", p.EventType())
	}
}
