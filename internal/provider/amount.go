package provider

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// YuanToCents 渠道回调里的元字符串转为分
//
// 订单里的权威金额是分（int64），渠道报文里的 "10.00" 必须无损换算，
// 任何精度丢失（如 "10.005"）直接判为非法金额。
func YuanToCents(yuan string) (int64, error) {
	d, err := decimal.NewFromString(yuan)
	if err != nil {
		return 0, fmt.Errorf("金额格式非法: %q", yuan)
	}

	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("金额精度超过分: %q", yuan)
	}
	return cents.IntPart(), nil
}
