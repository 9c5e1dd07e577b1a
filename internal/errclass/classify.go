// Package errclass maps raw provider error payloads into the closed error
// code taxonomy stored on jobs. Provider wire formats churn; keeping the
// mapping here means adding a provider never touches status-transition logic.
package errclass

import (
	"encoding/json"
	"strings"

	"server/internal/domain"
)

type providerError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Error    string `json:"error"`
	Detail   string `json:"detail"`
	RawCode  int    `json:"raw_code"`
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

// Classify inspects a provider error payload and returns the taxonomy code
// plus a short machine-independent description of what the provider said.
// Unrecognized shapes fall back to UnknownProviderError.
func Classify(payload []byte) (domain.ErrorCode, string) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return domain.ErrCodeUnknownProvider, "provider returned no error detail"
	}

	var decoded providerError
	_ = json.Unmarshal(payload, &decoded)

	detail := firstNonEmpty(decoded.Message, decoded.Error, decoded.Detail, decoded.BaseResp.StatusMsg, text)
	haystack := strings.ToLower(decoded.Code + " " + detail)

	switch {
	case containsAny(haystack, "invalid task", "unknown task_type", "unsupported task", "invalid_task_type"):
		return domain.ErrCodeInvalidTaskType, detail
	case containsAny(haystack, "quota", "rate limit", "insufficient balance", "credit", "too many requests"):
		return domain.ErrCodeProviderQuotaExceeded, detail
	case containsAny(haystack, "content policy", "moderation", "flagged", "nsfw", "sensitive", "rejected"):
		return domain.ErrCodeProviderRejected, detail
	case containsAny(haystack, "internal", "server error", "timeout", "unavailable", "overloaded"):
		return domain.ErrCodeProviderInternal, detail
	}
	return domain.ErrCodeUnknownProvider, detail
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
