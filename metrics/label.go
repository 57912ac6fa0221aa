package metrics

// Label 指标标签，值应当是低基数的
type Label struct {
	Key   string
	Value string
}

// L 创建 Label
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// 常用标签键
const (
	LabelCluster   = "cluster"
	LabelRole      = "role"
	LabelTier      = "tier"
	LabelOperation = "op"
	LabelResult    = "result"
	LabelName      = "name"
	LabelDatabase  = "database"
)

// 常用结果值
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultHit     = "hit"
	ResultMiss    = "miss"
)

// Result 根据 err 返回 success 或 error
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
