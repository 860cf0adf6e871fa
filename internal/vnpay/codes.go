package vnpay

// Response-code messages shown inline on the return page. Taken from the
// gateway's published code table; unknown codes fall back to a generic
// failure line.
var codeMessages = map[string]string{
	"00": "Giao dịch thành công",
	"07": "Giao dịch bị nghi ngờ gian lận",
	"09": "Thẻ/Tài khoản chưa đăng ký InternetBanking",
	"10": "Xác thực thông tin thẻ/tài khoản sai quá 3 lần",
	"11": "Hết hạn chờ thanh toán",
	"12": "Thẻ/Tài khoản bị khóa",
	"13": "Sai mật khẩu xác thực giao dịch (OTP)",
	"24": "Khách hàng hủy giao dịch",
	"51": "Tài khoản không đủ số dư",
	"65": "Tài khoản vượt hạn mức giao dịch trong ngày",
	"75": "Ngân hàng thanh toán đang bảo trì",
	"79": "Sai mật khẩu thanh toán quá số lần quy định",
}

// CodeMessage maps a vnp_ResponseCode to a display message.
func CodeMessage(code string) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	if code == "" {
		return "Không nhận được mã phản hồi từ cổng thanh toán"
	}
	return "Giao dịch không thành công (mã " + code + ")"
}
