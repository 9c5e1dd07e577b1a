package errclass

import "server/internal/domain"

var messages = map[string]map[domain.ErrorCode]string{
	"en": {
		domain.ErrCodeInvalidTaskType:       "The generation task was not accepted by the provider.",
		domain.ErrCodeProviderQuotaExceeded: "The video provider is at capacity. Please try again later.",
		domain.ErrCodeProviderRejected:      "The prompt or image was rejected by the provider's content policy.",
		domain.ErrCodeProviderInternal:      "The video provider hit an internal error.",
		domain.ErrCodeUnknownProvider:       "Video generation failed for an unknown reason.",
	},
	"id": {
		domain.ErrCodeInvalidTaskType:       "Tugas pembuatan video tidak diterima oleh penyedia.",
		domain.ErrCodeProviderQuotaExceeded: "Penyedia video sedang penuh. Silakan coba lagi nanti.",
		domain.ErrCodeProviderRejected:      "Prompt atau gambar ditolak oleh kebijakan konten penyedia.",
		domain.ErrCodeProviderInternal:      "Penyedia video mengalami kesalahan internal.",
		domain.ErrCodeUnknownProvider:       "Pembuatan video gagal karena alasan yang tidak diketahui.",
	},
}

// Message returns the human-readable, localized text for an error code. Raw
// provider payloads are never shown to users; this catalog is what the
// dashboard renders.
func Message(code domain.ErrorCode, locale string) string {
	catalog, ok := messages[locale]
	if !ok {
		catalog = messages["en"]
	}
	if msg, ok := catalog[code]; ok {
		return msg
	}
	return messages["en"][domain.ErrCodeUnknownProvider]
}
