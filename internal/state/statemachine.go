package state

import "fmt"

// State 开奖声明状态
// 一期的三种结果（两位数/单数开/单数收）由外部摇奖流程分别报进来，
// 状态机描述该期结果的齐备程度
const (
	StateNoResult = "no_result"          // 未有任何结果
	StatePartial  = "partially_declared" // 已有部分结果（单数开或单数收其一）
	StateFull     = "fully_declared"     // 两位数结果已知（直接报入或由两半推导）
)

// Event 声明事件
const (
	EvtDeclareTwoDigit = "declare_two_digit" // 报两位数结果
	EvtDeclareOpen     = "declare_open"      // 报单数开结果
	EvtDeclareClose    = "declare_close"     // 报单数收结果
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错。
// 注：open/close 均已报过后两位数自动推导，此处 Partial --declare_open/close--> Full
// 的判定由调用方结合已报字段决定，这里只约束合法方向。
func NextState(cur, evt string) (string, error) {
	switch cur {
	case StateNoResult:
		switch evt {
		case EvtDeclareTwoDigit:
			return StateFull, nil
		case EvtDeclareOpen, EvtDeclareClose:
			return StatePartial, nil
		}
	case StatePartial:
		switch evt {
		case EvtDeclareTwoDigit:
			return StateFull, nil
		case EvtDeclareOpen, EvtDeclareClose:
			// 另一半报齐后推导两位数 -> Full；重复报同一半则停留 Partial
			return StatePartial, nil
		}
	case StateFull:
		// 结果齐备后允许幂等重报（safe no-op），状态不回退
		switch evt {
		case EvtDeclareTwoDigit, EvtDeclareOpen, EvtDeclareClose:
			return StateFull, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}
