package constant

// 账变类型常量定义
// 账本 wallet_ledger.biz_type 使用数值枚举，biz_type_str 冗余字符串便于查询
const (
	LedgerBetPlaced    = 1 // 下注扣款（负数）
	LedgerPrizeWon     = 2 // 中奖派彩（审批后入账，正数）
	LedgerDealerCredit = 3 // 庄家转账给用户（转出为负，转入为正）
	LedgerAdminCredit  = 4 // 平台转账给用户
	LedgerUserDebit    = 5 // 用户转回平台
	LedgerCommission   = 6 // 庄家佣金（审批后入账）
	LedgerTopUp        = 7 // 充值审批入账
	LedgerRebate       = 8 // 用户返水（结算时自动入账）
)

// 账变类型描述映射
var BalanceChangeTypeDesc = map[int]string{
	LedgerBetPlaced:    "bet_placed",
	LedgerPrizeWon:     "prize_won",
	LedgerDealerCredit: "dealer_credit",
	LedgerAdminCredit:  "admin_credit",
	LedgerUserDebit:    "user_debit",
	LedgerCommission:   "commission_payout",
	LedgerTopUp:        "topup_approved",
	LedgerRebate:       "commission_rebate",
}

// LedgerKindName 按数值码取字符串（未知码返回空串，由调用方处理）
func LedgerKindName(code int8) string {
	if desc, exists := BalanceChangeTypeDesc[int(code)]; exists {
		return desc
	}
	return ""
}

// LedgerKindCode 按字符串取数值码（未知字符串返回0）
func LedgerKindCode(name string) int8 {
	for code, desc := range BalanceChangeTypeDesc {
		if desc == name {
			return int8(code)
		}
	}
	return 0
}

// GetBalanceChangeTypeDesc 获取账变类型描述
func GetBalanceChangeTypeDesc(changeType int) string {
	if desc, exists := BalanceChangeTypeDesc[changeType]; exists {
		return desc
	}
	return "未知类型"
}

// IsValidBalanceChangeType 验证账变类型是否有效
func IsValidBalanceChangeType(changeType int) bool {
	_, exists := BalanceChangeTypeDesc[changeType]
	return exists
}

// 常用账变类型分组
var (
	// 收入类型（对账户余额为正向）
	IncomeTypes = []int{LedgerPrizeWon, LedgerCommission, LedgerTopUp, LedgerRebate}

	// 支出类型（对账户余额为负向）
	ExpenseTypes = []int{LedgerBetPlaced}

	// 奖励类型（由结算/审批产生，非用户主动操作）
	RewardTypes = []int{LedgerPrizeWon, LedgerCommission, LedgerRebate}
)

// IsIncomeType 判断是否为收入类型
func IsIncomeType(changeType int) bool {
	for _, t := range IncomeTypes {
		if t == changeType {
			return true
		}
	}
	return false
}

// IsExpenseType 判断是否为支出类型
func IsExpenseType(changeType int) bool {
	for _, t := range ExpenseTypes {
		if t == changeType {
			return true
		}
	}
	return false
}

// IsRewardType 判断是否为奖励类型
func IsRewardType(changeType int) bool {
	for _, t := range RewardTypes {
		if t == changeType {
			return true
		}
	}
	return false
}
