package dispatch

import "github.com/Kame-terry/line-bot/internal/domain"

// Fixed replies. Internal errors never reach the user.
const (
	MsgUsage            = "請在 /a 後面輸入要摘要的文字，例如：/a 今天的會議重點是..."
	MsgPermissionDenied = "抱歉，您沒有使用此功能的權限。"
	MsgUnreadablePage   = "無法讀取該網頁內容，請確認網址是否正確。"
	MsgScraperDisabled  = "社群貼文擷取功能未啟用，請聯絡管理員設定 Apify。"
	MsgAudioFailed      = "語音處理失敗，請稍後再試。"
	MsgImageFailed      = "圖片處理失敗，請稍後再試。"
	MsgImageDisabled    = "圖片功能未啟用，請聯絡管理員設定 Google Drive。"
	MsgTextFailed       = "文字摘要失敗，請稍後再試。"
	MsgURLFailed        = "網頁摘要失敗，請稍後再試。"
)

const (
	suffixSaved      = "\n\n(saved)"
	suffixSaveFailed = "\n\n(save failed)"

	labelOriginal  = "原文"
	labelSource    = "來源"
	labelImageLink = "圖片連結"
	labelTime      = "時間"

	// Shown in place of the image link when the upload failed.
	markerUploadFailed = "(上傳失敗)"

	// LINE rejects text messages over 5000 characters.
	maxExcerptRunes = 1000
	maxBodyRunes    = 3000
	maxReplyRunes   = 5000
)

// typeLabel is the parenthesized tag after the title.
func typeLabel(t domain.NoteType) string {
	switch t {
	case domain.NoteVoice:
		return "語音筆記"
	case domain.NoteText:
		return "文字摘要"
	case domain.NoteWeb:
		return "網頁摘要"
	case domain.NoteFacebook:
		return "Facebook 摘要"
	case domain.NoteThreads:
		return "Threads 摘要"
	case domain.NoteImage:
		return "圖片筆記"
	default:
		return ""
	}
}

// statusSuffix maps an archive outcome to the reply suffix. Not configured
// and saved must stay distinguishable from failed.
func statusSuffix(s domain.ArchiveStatus) string {
	switch s {
	case domain.ArchiveSaved:
		return suffixSaved
	case domain.ArchiveFailed:
		return suffixSaveFailed
	default:
		return ""
	}
}
