package inventory

import (
	"regexp"
	"strings"
)

// 值对象定义（Value Object）
//
// 设计说明：
// 1. 值对象没有身份标识，只由值本身定义（两个值相等即是同一个对象）
// 2. 构造时完成校验，构造成功后不可变
// 3. 领域层的入参全部使用值对象，杜绝"裸int/裸string"在领域内流动

// skuPattern SKU格式：8-12位大写字母或数字
var skuPattern = regexp.MustCompile(`^[A-Z0-9]{8,12}$`)

// ProductSku 商品SKU值对象
// 示例：SKU12345、PROD00001234
type ProductSku string

// NewProductSku 创建SKU值对象
// 规则：去除首尾空白并转为大写后，必须是8-12位字母数字
func NewProductSku(value string) (ProductSku, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "" {
		return "", ErrEmptySku
	}
	if !skuPattern.MatchString(normalized) {
		return "", ErrInvalidSku
	}
	return ProductSku(normalized), nil
}

// String 返回SKU字符串
func (s ProductSku) String() string {
	return string(s)
}

// Quantity 数量值对象
// 不变式：永远非负（负数量在构造时就被拒绝）
type Quantity int

// NewQuantity 创建数量值对象
func NewQuantity(value int) (Quantity, error) {
	if value < 0 {
		return 0, ErrNegativeQuantity
	}
	return Quantity(value), nil
}

// ZeroQuantity 零数量
func ZeroQuantity() Quantity {
	return Quantity(0)
}

// Int 返回数量的整数值
func (q Quantity) Int() int {
	return int(q)
}

// IsZero 是否为零
func (q Quantity) IsZero() bool {
	return q == 0
}

// IsPositive 是否为正数
func (q Quantity) IsPositive() bool {
	return q > 0
}

// Add 数量相加（值对象不可变，返回新值）
func (q Quantity) Add(other Quantity) Quantity {
	return q + other
}

// Subtract 数量相减
// 注意：调用方必须先用GreaterOrEqual检查，减出负数是编程错误
func (q Quantity) Subtract(other Quantity) Quantity {
	result := q - other
	if result < 0 {
		// 领域不变式被破坏，这里不吞错误
		panic("inventory: quantity subtraction below zero")
	}
	return result
}

// GreaterOrEqual 是否大于等于另一个数量
func (q Quantity) GreaterOrEqual(other Quantity) bool {
	return q >= other
}
