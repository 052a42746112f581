package authgate

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpManager wraps code generation and validation under the engine's
// fixed TOTP policy.
type totpManager struct {
	issuer string
	digits otp.Digits
	period uint
	skew   uint
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{
		issuer: cfg.Issuer,
		digits: otp.Digits(cfg.Digits),
		period: uint(cfg.Period),
		skew:   uint(cfg.Skew),
	}
}

// generate mints a fresh base32 secret and its otpauth:// provisioning
// URI for the given account name.
func (m *totpManager) generate(account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: account,
		Period:      m.period,
		Digits:      m.digits,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// validate checks code against secret at the given instant, accepting
// the configured skew on either side of the current step.
func (m *totpManager) validate(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    m.period,
		Skew:      m.skew,
		Digits:    m.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
