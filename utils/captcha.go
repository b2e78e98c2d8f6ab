package utils

import (
	"sync"
	"time"

	"github.com/mojocn/base64Captcha"
)

var (
	captchaOnce  sync.Once
	captchaStore base64Captcha.Store
)

func captchaBackend() base64Captcha.Store {
	captchaOnce.Do(func() {
		captchaStore = newRegistrationCaptchaStore(GetRedis, 10*time.Minute)
	})
	return captchaStore
}

// GenerateCaptcha creates a digit captcha and returns (id, dataURI) for the page to display.
func GenerateCaptcha() (string, string, error) {
	driver := base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80)
	c := base64Captcha.NewCaptcha(driver, captchaBackend())
	id, b64, _, err := c.Generate()
	return id, b64, err
}

// VerifyCaptcha verifies the provided answer; it consumes the captcha either way.
func VerifyCaptcha(id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return captchaBackend().Verify(id, answer, true)
}
