package model

import "encoding/json"

// 文档顶层固定键
const (
	KeyWeekInfo     = "week_info"
	KeySheetName    = "sheet_name"
	KeySummaryCells = "summary_cells"
	KeySuppliers    = "suppliers"
)

// WeekPair 当前报表周期（금주 / 차주）
type WeekPair struct {
	Current int `json:"current_week"`
	Next    int `json:"next_week"`
}

// Record 一行输出：标签键 + 成功解析的数值字段
// 缺失字段表示"无法读取/空白"，从不表示 0
type Record map[string]any

// Document 单个工作表的提取结果，缓存与接口返回的最小单元
type Document struct {
	Blocks       map[string][]Record
	BlockOrder   []string
	WeekInfo     WeekPair
	SheetName    string
	SummaryCells map[string]any
	Suppliers    []Record
}

// NewDocument 创建空文档
func NewDocument(sheetName string, weeks WeekPair) *Document {
	return &Document{
		Blocks:    make(map[string][]Record),
		WeekInfo:  weeks,
		SheetName: sheetName,
	}
}

// SetBlock 写入一个块；重复写入同名块时保持首次出现的顺序
func (d *Document) SetBlock(name string, records []Record) {
	if records == nil {
		records = []Record{}
	}
	if _, ok := d.Blocks[name]; !ok {
		d.BlockOrder = append(d.BlockOrder, name)
	}
	d.Blocks[name] = records
}

// Block 读取一个块
func (d *Document) Block(name string) ([]Record, bool) {
	records, ok := d.Blocks[name]
	return records, ok
}

// Payload 展开为接口使用的扁平 JSON 结构
func (d *Document) Payload() map[string]any {
	out := make(map[string]any, len(d.Blocks)+4)
	for name, records := range d.Blocks {
		out[name] = records
	}
	out[KeyWeekInfo] = d.WeekInfo
	out[KeySheetName] = d.SheetName
	if d.SummaryCells != nil {
		out[KeySummaryCells] = d.SummaryCells
	}
	if d.Suppliers != nil {
		out[KeySuppliers] = d.Suppliers
	}
	return out
}

// MarshalJSON 与 Payload 保持一致的序列化
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Payload())
}

// RowCounts 各块记录数（日志与刷新历史使用）
func (d *Document) RowCounts() map[string]int {
	counts := make(map[string]int, len(d.Blocks)+1)
	for name, records := range d.Blocks {
		counts[name] = len(records)
	}
	if d.Suppliers != nil {
		counts[KeySuppliers] = len(d.Suppliers)
	}
	return counts
}
