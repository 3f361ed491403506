package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	chelper "nx-server/common/helper"
)

// newID 生成可读的业务单号
// 格式：{prefix}{YYYYMMDDHHmmss}{毫秒3位}{随机8位十六进制}
// 示例：BET20260831143025417A1F03B2C
// 优点：
//   - 可读：包含前缀与时间
//   - 有序：按时间（毫秒）排序
//   - 唯一：毫秒 + 32位随机数，整批预生成也不撞号
func newID(prefix string) string {
	now := time.Now()
	// 日期时间部分：YYYYMMDD HHmmss + 毫秒
	dateTime := now.Format("20060102150405")
	millis := fmt.Sprintf("%03d", now.Nanosecond()/1e6)
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		// crypto 随机源异常时退化为伪随机，保证单号仍可生成
		for i := range randomBytes {
			randomBytes[i] = byte(chelper.GenerateRandNum(0, 256))
		}
	}
	randomHex := strings.ToUpper(hex.EncodeToString(randomBytes))

	return prefix + dateTime + millis + randomHex
}

// 各单据前缀
const (
	idPrefixAccount    = "ACC"
	idPrefixBet        = "BET"
	idPrefixPrize      = "PRZ"
	idPrefixCommission = "CMS"
	idPrefixTopup      = "TPU"
	idPrefixTransfer   = "TRF"
)
