package event

// Type は通知のきっかけとなるイベントの種類を表す。
// 通知レコードのkindとしてそのまま保存される。kindは自由形式の文字列であり、
// ここに列挙されていない種類も保存できる。
type Type string

const (
	// TypeAccountStatus はアカウントの審査状態が変わったことを表す。
	TypeAccountStatus Type = "ACCOUNT_STATUS"
	// TypeGigStatus はギグへの応募状態が変わったことを表す。
	TypeGigStatus Type = "GIG_STATUS"
)

// アカウントの審査状態。
const (
	AccountStatusPending  = "pending"
	AccountStatusApproved = "approved"
	AccountStatusRejected = "rejected"
)

// ギグ応募の状態。
const (
	ApplicationStatusPending     = "pending"
	ApplicationStatusShortlisted = "shortlisted"
	ApplicationStatusAccepted    = "accepted"
	ApplicationStatusRejected    = "rejected"
)

// Payload は種類ごとのイベントデータが満たすインターフェース。
// 通知のmetadataはこの型から生成され、この型に復元される。
type Payload interface {
	// EventType はペイロードに対応するイベントの種類を返す。
	EventType() Type
}

// AccountStatusData はACCOUNT_STATUSイベントのデータ。
type AccountStatusData struct {
	// Status は変更後の審査状態。
	Status string `json:"status" validate:"required"`
	// AccountType はアカウントの種類（"individual" または "company"）。
	AccountType string `json:"account_type,omitempty"`
}

// EventType はTypeAccountStatusを返す。
func (AccountStatusData) EventType() Type { return TypeAccountStatus }

// GigStatusData はGIG_STATUSイベントのデータ。
type GigStatusData struct {
	// ApplicationID は状態が変わった応募のID。
	ApplicationID string `json:"application_id" validate:"required"`
	// GigID は応募先ギグのID。
	GigID string `json:"gig_id,omitempty"`
	// GigTitle は応募先ギグのタイトル。通知本文に埋め込まれる。
	GigTitle string `json:"gig_title" validate:"required"`
	// Status は変更後の応募状態。
	Status string `json:"status" validate:"required"`
}

// EventType はTypeGigStatusを返す。
func (GigStatusData) EventType() Type { return TypeGigStatus }

// UnknownData は既知の種類に該当しないイベントのデータ。
// metadataをそのままの形で保持する。
type UnknownData struct {
	// Type はイベントの種類。
	Type Type
	// Fields は自由形式のメタデータ。
	Fields map[string]any
}

// EventType は保持している種類を返す。
func (d UnknownData) EventType() Type { return d.Type }

// Known は種類が既知かどうかを返す。
func (t Type) Known() bool {
	switch t {
	case TypeAccountStatus, TypeGigStatus:
		return true
	}
	return false
}
