package authgate

import (
	"crypto/sha256"
	"strings"

	"github.com/authgate/authgate/internal"
)

// backupCodeHash is the stored form of a backup code. Codes are
// high-entropy and single-use, so an unsalted digest suffices and stays
// cheap enough to check during login.
func backupCodeHash(code string) [32]byte {
	return sha256.Sum256([]byte(normalizeBackupCode(code)))
}

// normalizeBackupCode strips separators and case so a user can type the
// code the way their password manager stored it.
func normalizeBackupCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return code
}

// generateBackupCodes mints count hex codes of byteLen random bytes each
// and returns both the cleartext (shown to the user exactly once) and
// the hashes handed to the store.
func generateBackupCodes(count, byteLen int) ([]string, [][32]byte, error) {
	codes := make([]string, 0, count)
	hashes := make([][32]byte, 0, count)
	for range count {
		code, err := internal.NewBackupCode(byteLen)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, backupCodeHash(code))
	}
	return codes, hashes, nil
}
