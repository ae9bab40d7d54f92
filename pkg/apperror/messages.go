package apperror

import "strings"

// Supported message languages.
const (
	LangEnglish    = "en"
	LangVietnamese = "vi"
)

var messages = map[string]map[string]string{
	LangVietnamese: {
		CodeInvalidAmount:       "Số tiền không hợp lệ",
		CodeWalletLocked:        "Ví đã bị khóa",
		CodeWrongPassword:       "Mật khẩu ví không đúng",
		CodeInsufficientBalance: "Số dư ví không đủ",
		CodeNotFound:            "Không tìm thấy dữ liệu",
		CodeNotPending:          "Giao dịch không còn ở trạng thái chờ xử lý",
		CodeNotWithdraw:         "Giao dịch không phải lệnh rút tiền",
		CodeDepositExpired:      "Lệnh nạp tiền đã hết hạn",
		CodePermissionDenied:    "Bạn không có quyền thực hiện thao tác này",
		CodeInvalidToken:        "Phiên đăng nhập không hợp lệ hoặc đã hết hạn",
		CodeInvalidSignature:    "Chữ ký yêu cầu không hợp lệ",
		CodeDuplicateReference:  "Mã thanh toán đã được sử dụng",
		CodeAmountMismatch:      "Số tiền thanh toán không khớp với lệnh nạp",
		CodeIdempotencyConflict: "Khóa idempotency đã được dùng cho một yêu cầu khác",
		CodeRateLimited:         "Bạn thao tác quá nhanh, vui lòng thử lại sau",
		CodeExternalUnavailable: "Dịch vụ bên ngoài tạm thời không khả dụng, vui lòng thử lại",
		CodeInternal:            "Đã có lỗi xảy ra, vui lòng thử lại",
		CodeLedgerMismatch:      "Đã có lỗi xảy ra, vui lòng thử lại",
	},
}

// genericMessage is shown for infrastructure failures so internals never leak.
const genericMessage = "Something went wrong, please try again"

// Localize returns the user-facing message for err in lang.
// Infrastructure errors always render a generic "try again" text.
func Localize(err *AppError, lang string) string {
	internal := err.Code == CodeInternal || err.Code == CodeLedgerMismatch
	if byCode, ok := messages[normalizeLang(lang)]; ok {
		if msg, ok := byCode[err.Code]; ok {
			return msg
		}
	}
	if internal {
		return genericMessage
	}
	return err.Message
}

// normalizeLang reduces an Accept-Language value to its primary tag.
func normalizeLang(lang string) string {
	lang = strings.TrimSpace(strings.ToLower(lang))
	if i := strings.IndexAny(lang, ",;-_"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return LangEnglish
	}
	return lang
}
