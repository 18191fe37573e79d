package model

import (
	"bytes"
	"math"
	"strings"

	"github.com/bpp/sloty/pkg/errors"
	"github.com/shopspring/decimal"
)

// FixedDigits 定点数小数位数
const FixedDigits = 4

// FixedScale 定点数缩放因子（10^FixedDigits）
const FixedScale = 10000

// Fixed 定点小数，内部以 int64 存储 ×10000 后的整数值。
// 槽位成本与分值都使用该类型，避免浮点误差导致 3.9+0.2 这类比较出错。
type Fixed int64

var maxFixedUnits = decimal.NewFromInt(math.MaxInt64)

// ParseFixed 解析十进制字符串，超过4位小数或超出范围时返回 NUMERIC_OVERFLOW
func ParseFixed(s string) (Fixed, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInvalidInput, "无法解析定点数 '"+s+"'")
	}
	return FixedFromDecimal(d)
}

// MustFixed 解析定点数，失败时 panic（仅用于常量与测试）
func MustFixed(s string) Fixed {
	f, err := ParseFixed(s)
	if err != nil {
		panic(err)
	}
	return f
}

// FixedFromDecimal 将 decimal 转换为定点数
func FixedFromDecimal(d decimal.Decimal) (Fixed, error) {
	scaled := d.Shift(FixedDigits)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, errors.NumericOverflow("数值 %s 超过 %d 位小数精度", d.String(), FixedDigits)
	}
	if scaled.Abs().GreaterThan(maxFixedUnits) {
		return 0, errors.NumericOverflow("数值 %s 超出定点数范围", d.String())
	}
	return Fixed(scaled.IntPart()), nil
}

// FixedFromInt 整数转定点数
func FixedFromInt(n int64) Fixed {
	return Fixed(n * FixedScale)
}

// Decimal 转换为 decimal
func (f Fixed) Decimal() decimal.Decimal {
	return decimal.New(int64(f), -FixedDigits)
}

// Float64 转换为浮点数（仅用于指标与日志）
func (f Fixed) Float64() float64 {
	return f.Decimal().InexactFloat64()
}

// Units 返回缩放后的整数值
func (f Fixed) Units() int64 {
	return int64(f)
}

// String 返回规范化的十进制表示，如 "4"、"3.9"
func (f Fixed) String() string {
	return f.Decimal().String()
}

// MulDecimal 乘以十进制系数，结果四舍五入到4位小数
func (f Fixed) MulDecimal(m decimal.Decimal) (Fixed, error) {
	return FixedFromDecimal(f.Decimal().Mul(m).Round(FixedDigits))
}

// MarshalJSON 以 JSON 数字输出
func (f Fixed) MarshalJSON() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalJSON 同时接受数字与字符串形式
func (f *Fixed) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := ParseFixed(string(data))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// AddChecked 带溢出检查的加法，超出 int64 范围时返回 NUMERIC_OVERFLOW
func (f Fixed) AddChecked(g Fixed) (Fixed, error) {
	sum := f + g
	if (g > 0 && sum < f) || (g < 0 && sum > f) {
		return 0, errors.NumericOverflow("%s + %s 超出定点数范围", f, g)
	}
	return sum, nil
}

// SumFixed 求和
func SumFixed(values ...Fixed) Fixed {
	var total Fixed
	for _, v := range values {
		total += v
	}
	return total
}
