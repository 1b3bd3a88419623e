package parser

// Sheet 只读的工作表访问；按列字母 + 行号寻址
type Sheet interface {
	Name() string
	Cell(col string, row int) (Cell, error)
}

// ColumnField 语义字段到列字母的映射项
type ColumnField struct {
	Field  string `json:"field"`
	Column string `json:"column"`
}

// ColumnMap 有序映射：字段顺序即输出与读取顺序
type ColumnMap []ColumnField

// Fields 字段名列表
func (m ColumnMap) Fields() []string {
	out := make([]string, len(m))
	for i, f := range m {
		out[i] = f.Field
	}
	return out
}

// Column 查找字段对应的列
func (m ColumnMap) Column(field string) (string, bool) {
	for _, f := range m {
		if f.Field == field {
			return f.Column, true
		}
	}
	return "", false
}
