// internal/service/checkout/domain/fingerprint.go
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ComputeFingerprint 计算购物车内容 + 客户身份的指纹。
// 商品行先按 (productID, variantID) 排序再参与哈希，
// 同样的商品以不同顺序提交会得到同一个指纹。
// 单价不参与指纹：识别的是"同一车货"，价格浮动不应破坏判定。
func ComputeFingerprint(email string, items []OrderItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s|%s|%d", item.ProductID, item.VariantID, item.Quantity))
	}
	sort.Strings(lines)

	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}
