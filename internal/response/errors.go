package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired     ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid      ErrCode = "TOKEN_INVALID"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrLoadFailed       ErrCode = "LOAD_FAILED"
	ErrExamNotFound     ErrCode = "EXAM_NOT_FOUND"
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrSessionClosed    ErrCode = "SESSION_CLOSED"
	ErrSubmitFailed     ErrCode = "SUBMIT_FAILED"
	ErrSubmitInProgress ErrCode = "SUBMIT_IN_PROGRESS"
	ErrUnknownQuestion  ErrCode = "UNKNOWN_QUESTION"
	ErrInvalidOption    ErrCode = "INVALID_OPTION"
	ErrIndexOutOfRange  ErrCode = "INDEX_OUT_OF_RANGE"
	ErrPeriodsFailed    ErrCode = "PERIODS_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrLoadFailed:
		return "Ujian tidak dapat dimuat. Silakan kembali ke dasbor."
	case ErrExamNotFound:
		return "Ujian tidak ditemukan."
	case ErrSessionNotFound:
		return "Sesi ujian tidak ditemukan. Silakan buka kembali ujian."
	case ErrSessionClosed:
		return "Waktu ujian telah berakhir. Jawaban tidak dapat diubah."
	case ErrSubmitFailed:
		return "Pengumpulan jawaban gagal. Jawaban Anda tersimpan, silakan coba lagi."
	case ErrSubmitInProgress:
		return "Pengumpulan jawaban sedang diproses."
	case ErrUnknownQuestion:
		return "Pertanyaan tidak ditemukan pada ujian ini."
	case ErrInvalidOption:
		return "Pilihan jawaban tidak valid."
	case ErrIndexOutOfRange:
		return "Nomor soal berada di luar jangkauan."
	case ErrPeriodsFailed:
		return "Jadwal ujian tidak dapat dimuat."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
