package clickup

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

// FieldType はClickUpが宣言するカスタムフィールドの型。
// 既知の型の閉じた列挙として扱い、未知の型はFieldTypeUnknownに畳む。
type FieldType string

const (
	FieldTypeDate      FieldType = "date"
	FieldTypeDropDown  FieldType = "drop_down"
	FieldTypeURL       FieldType = "url"
	FieldTypeShortText FieldType = "short_text"
	FieldTypeText      FieldType = "text"
	FieldTypeUnknown   FieldType = ""
)

// ParseFieldType はプロバイダーの型文字列をFieldTypeに解決する。
// 未知の型文字列はFieldTypeUnknownとなり、値はそのまま通される。
func ParseFieldType(s string) FieldType {
	switch FieldType(s) {
	case FieldTypeDate, FieldTypeDropDown, FieldTypeURL, FieldTypeShortText, FieldTypeText:
		return FieldType(s)
	default:
		return FieldTypeUnknown
	}
}

// FieldOption はドロップダウンフィールドの選択肢。
type FieldOption struct {
	Name       string `json:"name"`
	OrderIndex int    `json:"orderindex"`
}

// FieldDefinition はプロバイダーが宣言するカスタムフィールドの定義。
// リクエストごとに取得され、リクエスト間でキャッシュされない
// （定義は呼び出しの合間に変わりうる）。
type FieldDefinition struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	TypeConfig struct {
		Options []FieldOption `json:"options"`
	} `json:"type_config"`
}

// Resolution はフィールド名と値の解決結果。
// EncodedがtrueならFieldIDとValueが有効、falseならSkipReasonが有効。
type Resolution struct {
	Encoded    bool
	FieldID    string
	Value      any
	SkipReason string
}

// スキップ理由
const (
	SkipFieldNotFound  = "field not found"
	SkipInvalidDate    = "invalid date"
	SkipOptionNotFound = "option not found"
)

// dateLayouts は日付フィールドの値として受け付けるレイアウト。
// タイムゾーンの無い日付はUTC深夜0時として解釈される。
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Resolve はフィールド指定をプロバイダー定義に照合し、型に応じて値を
// エンコードする。名前の照合は大文字小文字を無視する。
// データ形状の不一致ではエラーにならず常にResolutionを返す。
// エラーになるのは名前が空のfieldSpecのみ（呼び出し元の誤り）。
func Resolve(spec model.FieldSpec, defs []FieldDefinition) (Resolution, error) {
	if spec.Name == "" {
		return Resolution{}, model.NewMissingFieldError("custom field name")
	}

	var def *FieldDefinition
	for i := range defs {
		if strings.EqualFold(defs[i].Name, spec.Name) {
			def = &defs[i]
			break
		}
	}
	if def == nil {
		return Resolution{SkipReason: SkipFieldNotFound}, nil
	}

	switch ParseFieldType(def.Type) {
	case FieldTypeDate:
		ms, ok := encodeDate(spec.Value)
		if !ok {
			return Resolution{SkipReason: SkipInvalidDate}, nil
		}
		return Resolution{Encoded: true, FieldID: def.ID, Value: ms}, nil

	case FieldTypeDropDown:
		index, ok := encodeDropDown(spec.Value, def.TypeConfig.Options)
		if !ok {
			return Resolution{SkipReason: SkipOptionNotFound}, nil
		}
		return Resolution{Encoded: true, FieldID: def.ID, Value: index}, nil

	case FieldTypeURL, FieldTypeShortText, FieldTypeText:
		return Resolution{Encoded: true, FieldID: def.ID, Value: spec.Value}, nil

	default:
		// 未知の型は値をそのまま設定する
		return Resolution{Encoded: true, FieldID: def.ID, Value: spec.Value}, nil
	}
}

// encodeDate は値をエポックミリ秒にエンコードする。
// 文字列はdateLayoutsで解釈し、数値は既にエポックミリ秒とみなす。
func encodeDate(value any) (int64, bool) {
	switch v := value.(type) {
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UnixMilli(), true
			}
		}
		return 0, false
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// encodeDropDown は値を選択肢名に大文字小文字を無視して照合し、
// 一致した選択肢のorderindexを返す。
func encodeDropDown(value any, options []FieldOption) (int, bool) {
	name, ok := value.(string)
	if !ok {
		return 0, false
	}
	for _, opt := range options {
		if strings.EqualFold(opt.Name, name) {
			return opt.OrderIndex, true
		}
	}
	return 0, false
}
