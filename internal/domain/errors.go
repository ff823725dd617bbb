package domain

import (
	"errors"
	"fmt"
)

// SchemaError 表示上游返回的数据不符合预期：缺字段、类型不对、金额/MIME 无法映射等。
// 这类错误必须中止整次运行，不允许静默丢弃记录。
type SchemaError struct {
	Source string // 例如 "github_sponsors"
	Field  string // 出问题的字段路径，可为空
	Err    error
}

func (e *SchemaError) Error() string {
	switch {
	case e.Field != "" && e.Source != "":
		return fmt.Sprintf("%s: 字段 %s 无效：%v", e.Source, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("字段 %s 无效：%v", e.Field, e.Err)
	case e.Source != "":
		return fmt.Sprintf("%s: 数据无效：%v", e.Source, e.Err)
	default:
		return fmt.Sprintf("数据无效：%v", e.Err)
	}
}

func (e *SchemaError) Unwrap() error { return e.Err }

// MissingField 构造“缺少字段”的 SchemaError。
func MissingField(source, field string) error {
	return &SchemaError{Source: source, Field: field, Err: errors.New("缺失")}
}

// IsSchema 判断 err 链上是否有 SchemaError。
func IsSchema(err error) bool {
	var e *SchemaError
	return errors.As(err, &e)
}
