package backup

import (
	"fmt"
	"io"

	"filippo.io/age"
)

// Encrypt reads plaintext from r and writes age ciphertext for the X25519
// recipient (an "age1..." public key) to w.
func Encrypt(recipient string, r io.Reader, w io.Writer) error {
	rcpt, err := age.ParseX25519Recipient(recipient)
	if err != nil {
		return fmt.Errorf("parsing age recipient: %w", err)
	}

	encWriter, err := age.Encrypt(w, rcpt)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}
