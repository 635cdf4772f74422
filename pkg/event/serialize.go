package event

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Encode はペイロードを通知のmetadata（JSONオブジェクト）に変換する。
func Encode(p Payload) (map[string]any, error) {
	if u, ok := p.(UnknownData); ok {
		if u.Fields == nil {
			return map[string]any{}, nil
		}
		return maps.Clone(u.Fields), nil
	}

	jsonData, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}

	metadata := map[string]any{}
	if err := json.Unmarshal(jsonData, &metadata); err != nil {
		return nil, fmt.Errorf("イベントデータのmetadata変換に失敗: %w", err)
	}
	return metadata, nil
}

// Decode は種類とmetadataから種類ごとのペイロードを復元する。
// 未知の種類はUnknownDataとして返す。
func Decode(t Type, metadata map[string]any) (Payload, error) {
	switch t {
	case TypeAccountStatus:
		data, err := DecodeData[AccountStatusData](metadata)
		if err != nil {
			return nil, err
		}
		return *data, nil
	case TypeGigStatus:
		data, err := DecodeData[GigStatusData](metadata)
		if err != nil {
			return nil, err
		}
		return *data, nil
	default:
		return UnknownData{Type: t, Fields: metadata}, nil
	}
}

// DecodeData はmetadataを指定された型にデシリアライズする。
func DecodeData[T any](metadata map[string]any) (*T, error) {
	var data T
	if metadata == nil {
		return &data, nil
	}

	jsonData, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("metadataのシリアライズに失敗: %w", err)
	}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
